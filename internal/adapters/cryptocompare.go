package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// CryptoCompareAdapter serves market summaries and news from the
// CryptoCompare API. Works without a key at reduced quotas.
type CryptoCompareAdapter struct {
	BaseAdapter
}

func newCryptoCompare(d Descriptor, key, secret string) (Adapter, error) {
	a := &CryptoCompareAdapter{
		BaseAdapter: newBase("cryptocompare", d, map[string]string{
			"market": "/data/pricemultifull",
			"news":   "/data/v2/news/",
		}, key, secret),
	}
	if key != "" {
		a.authorize = func(req *http.Request) { req.Header.Set("Authorization", "Apikey "+key) }
	}
	return a, nil
}

// FetchRaw maps the normalized pair onto fsyms/tsyms for quotes and a
// category filter for news.
func (a *CryptoCompareAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if sym, ok := req.Params["symbol"]; ok {
		base, quote := splitPair(sym)
		switch req.DataType {
		case "news":
			req.Params = map[string]string{"categories": base}
		default:
			if quote == "USDT" {
				quote = "USD" // CryptoCompare quotes majors in fiat
			}
			req.Params = map[string]string{"fsyms": base, "tsyms": quote}
		}
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

func (a *CryptoCompareAdapter) Transform(raw []byte, dataType string) (any, error) {
	if resp := gjson.GetBytes(raw, "Response"); resp.String() == "Error" {
		return nil, fmt.Errorf("cryptocompare error: %s", gjson.GetBytes(raw, "Message").String())
	}

	switch dataType {
	case "market":
		usd := gjson.GetBytes(raw, "RAW.*.USD")
		if !usd.Exists() {
			return nil, fmt.Errorf("parse market: missing RAW quote")
		}
		return &Market{
			Price:            usd.Get("PRICE").Float(),
			Volume24h:        usd.Get("TOTALVOLUME24HTO").Float(),
			MarketCap:        usd.Get("MKTCAP").Float(),
			Change24hPercent: usd.Get("CHANGEPCT24HOUR").Float(),
			High24h:          usd.Get("HIGH24HOUR").Float(),
			Low24h:           usd.Get("LOW24HOUR").Float(),
		}, nil

	case "news":
		out := &News{}
		gjson.GetBytes(raw, "Data").ForEach(func(_, item gjson.Result) bool {
			art := Article{
				Title:  item.Get("title").String(),
				URL:    item.Get("url").String(),
				Source: item.Get("source_info.name").String(),
			}
			if ts := item.Get("published_on").Int(); ts > 0 {
				art.PublishedUTC = time.Unix(ts, 0).UTC().Format(time.RFC3339)
			}
			out.Articles = append(out.Articles, art)
			return true
		})
		return out, nil

	default:
		return nil, fmt.Errorf("cryptocompare: unsupported data type %q", dataType)
	}
}

var _ Adapter = (*CryptoCompareAdapter)(nil)
