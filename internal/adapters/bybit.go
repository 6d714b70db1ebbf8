package adapters

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// BybitAdapter serves derivatives data from the Bybit v5 public API. Both
// funding and open interest come from the linear tickers endpoint.
type BybitAdapter struct {
	BaseAdapter
}

func newBybit(d Descriptor, key, secret string) (Adapter, error) {
	return &BybitAdapter{
		BaseAdapter: newBase("bybit", d, map[string]string{
			"funding":       "/v5/market/tickers",
			"open_interest": "/v5/market/tickers",
		}, key, secret),
	}, nil
}

// FetchRaw maps the normalized pair onto Bybit's linear perpetual symbols.
func (a *BybitAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if sym, ok := req.Params["symbol"]; ok {
		base, quote := splitPair(sym)
		req.Params = map[string]string{
			"category": "linear",
			"symbol":   base + quote,
		}
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

func (a *BybitAdapter) Transform(raw []byte, dataType string) (any, error) {
	if code := gjson.GetBytes(raw, "retCode"); code.Exists() && code.Int() != 0 {
		return nil, fmt.Errorf("bybit error %d: %s", code.Int(), gjson.GetBytes(raw, "retMsg").String())
	}
	row := gjson.GetBytes(raw, "result.list.0")
	if !row.Exists() {
		return nil, fmt.Errorf("empty ticker list")
	}

	switch dataType {
	case "funding":
		next := ""
		if ms, err := strconv.ParseInt(row.Get("nextFundingTime").String(), 10, 64); err == nil && ms > 0 {
			next = time.UnixMilli(ms).UTC().Format(time.RFC3339)
		}
		return &Funding{
			Symbol:         row.Get("symbol").String(),
			FundingRate:    row.Get("fundingRate").Float(),
			MarkPrice:      row.Get("markPrice").Float(),
			NextFundingUTC: next,
		}, nil

	case "open_interest":
		return &OpenInterest{
			Symbol:            row.Get("symbol").String(),
			OpenInterest:      row.Get("openInterest").Float(),
			OpenInterestValue: row.Get("openInterestValue").Float(),
		}, nil

	default:
		return nil, fmt.Errorf("bybit: unsupported data type %q", dataType)
	}
}

var _ Adapter = (*BybitAdapter)(nil)
