package adapters

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// CoinMarketCapAdapter serves asset profiles, quotes and supply from the
// CoinMarketCap Pro API. Requires an API key.
type CoinMarketCapAdapter struct {
	BaseAdapter
}

func newCoinMarketCap(d Descriptor, key, secret string) (Adapter, error) {
	a := &CoinMarketCapAdapter{
		BaseAdapter: newBase("coinmarketcap", d, map[string]string{
			"basic":  "/v2/cryptocurrency/info",
			"market": "/v2/cryptocurrency/quotes/latest",
			"supply": "/v2/cryptocurrency/quotes/latest",
		}, key, secret),
	}
	a.authorize = func(req *http.Request) { req.Header.Set("X-CMC_PRO_API_KEY", key) }
	return a, nil
}

// FetchRaw queries by the base asset symbol; CoinMarketCap has no pair
// notion on these endpoints.
func (a *CoinMarketCapAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if sym, ok := req.Params["symbol"]; ok {
		base, _ := splitPair(sym)
		req.Params = map[string]string{"symbol": base}
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

func (a *CoinMarketCapAdapter) Transform(raw []byte, dataType string) (any, error) {
	if code := gjson.GetBytes(raw, "status.error_code"); code.Exists() && code.Int() != 0 {
		return nil, fmt.Errorf("coinmarketcap error %d: %s",
			code.Int(), gjson.GetBytes(raw, "status.error_message").String())
	}
	// Responses key data by the requested symbol with a one-element array
	// per match; the wildcard takes the first.
	row := gjson.GetBytes(raw, "data.*.0")
	if !row.Exists() {
		return nil, fmt.Errorf("empty data")
	}

	switch dataType {
	case "basic":
		return &Basic{
			Symbol:       row.Get("symbol").String(),
			Name:         row.Get("name").String(),
			Description:  row.Get("description").String(),
			Chain:        row.Get("platform.slug").String(),
			TokenAddress: row.Get("platform.token_address").String(),
			Website:      row.Get("urls.website.0").String(),
			RepoURL:      row.Get("urls.source_code.0").String(),
		}, nil

	case "market":
		usd := row.Get("quote.USD")
		if !usd.Exists() {
			return nil, fmt.Errorf("parse market: missing USD quote")
		}
		return &Market{
			Price:            usd.Get("price").Float(),
			Volume24h:        usd.Get("volume_24h").Float(),
			MarketCap:        usd.Get("market_cap").Float(),
			Change24hPercent: usd.Get("percent_change_24h").Float(),
		}, nil

	case "supply":
		return &Supply{
			Circulating: row.Get("circulating_supply").Float(),
			Total:       row.Get("total_supply").Float(),
			Max:         row.Get("max_supply").Float(),
		}, nil

	default:
		return nil, fmt.Errorf("coinmarketcap: unsupported data type %q", dataType)
	}
}

var _ Adapter = (*CoinMarketCapAdapter)(nil)
