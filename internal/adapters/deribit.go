package adapters

import (
	"context"
	"encoding/json"
	"fmt"
)

// DeribitAdapter serves an options market summary from the Deribit public
// API, aggregated over the per-instrument book summaries.
type DeribitAdapter struct {
	BaseAdapter
}

func newDeribit(d Descriptor, key, secret string) (Adapter, error) {
	return &DeribitAdapter{
		BaseAdapter: newBase("deribit", d, map[string]string{
			"options": "/api/v2/public/get_book_summary_by_currency",
		}, key, secret),
	}, nil
}

// FetchRaw queries the options book summary for the base currency.
func (a *DeribitAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if sym, ok := req.Params["symbol"]; ok {
		base, _ := splitPair(sym)
		req.Params = map[string]string{
			"currency": base,
			"kind":     "option",
		}
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

func (a *DeribitAdapter) Transform(raw []byte, dataType string) (any, error) {
	if dataType != "options" {
		return nil, fmt.Errorf("deribit: unsupported data type %q", dataType)
	}

	var resp struct {
		Result []struct {
			UnderlyingIndex string  `json:"underlying_index"`
			OpenInterest    float64 `json:"open_interest"`
			Volume          float64 `json:"volume"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse book summary: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("deribit error: %s", resp.Error.Message)
	}

	out := &Options{InstrumentsCount: len(resp.Result)}
	for _, inst := range resp.Result {
		out.TotalOpenInterest += inst.OpenInterest
		out.TotalVolume24h += inst.Volume
		if out.Currency == "" && len(inst.UnderlyingIndex) >= 3 {
			out.Currency = inst.UnderlyingIndex[:3]
		}
	}
	return out, nil
}

var _ Adapter = (*DeribitAdapter)(nil)
