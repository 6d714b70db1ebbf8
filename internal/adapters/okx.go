package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OKXAdapter serves spot and derivatives data from the OKX public API.
type OKXAdapter struct {
	BaseAdapter
}

func newOKX(d Descriptor, key, secret string) (Adapter, error) {
	return &OKXAdapter{
		BaseAdapter: newBase("okx", d, map[string]string{
			"ticker":        "/api/v5/market/ticker",
			"orderbook":     "/api/v5/market/books",
			"funding":       "/api/v5/public/funding-rate",
			"open_interest": "/api/v5/public/open-interest",
		}, key, secret),
	}, nil
}

// FetchRaw maps the normalized pair onto OKX instrument IDs: spot data uses
// BASE-QUOTE, derivatives the perpetual swap BASE-QUOTE-SWAP.
func (a *OKXAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if sym, ok := req.Params["symbol"]; ok {
		base, quote := splitPair(sym)
		inst := base + "-" + quote
		p := map[string]string{"instId": inst}
		switch req.DataType {
		case "funding":
			p["instId"] = inst + "-SWAP"
		case "open_interest":
			p["instId"] = inst + "-SWAP"
			p["instType"] = "SWAP"
		}
		if limit, ok := req.Params["limit"]; ok {
			p["sz"] = limit
		}
		req.Params = p
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

// okxEnvelope is the common {code, msg, data} wrapper.
type okxEnvelope struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

func okxFirst(raw []byte) (json.RawMessage, error) {
	var env okxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if env.Code != "0" {
		return nil, fmt.Errorf("okx error %s: %s", env.Code, env.Msg)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	return env.Data[0], nil
}

func (a *OKXAdapter) Transform(raw []byte, dataType string) (any, error) {
	first, err := okxFirst(raw)
	if err != nil {
		return nil, err
	}

	switch dataType {
	case "ticker":
		var t struct {
			InstID string `json:"instId"`
			Last   string `json:"last"`
			BidPx  string `json:"bidPx"`
			AskPx  string `json:"askPx"`
			VolCcy string `json:"volCcy24h"`
			Open   string `json:"open24h"`
		}
		if err := json.Unmarshal(first, &t); err != nil {
			return nil, fmt.Errorf("parse ticker: %w", err)
		}
		last, open := parseFloat(t.Last), parseFloat(t.Open)
		change := 0.0
		if open > 0 {
			change = (last - open) / open * 100
		}
		return &Ticker{
			Symbol:           t.InstID,
			Last:             last,
			Bid:              parseFloat(t.BidPx),
			Ask:              parseFloat(t.AskPx),
			Volume24h:        parseFloat(t.VolCcy),
			Change24hPercent: change,
		}, nil

	case "orderbook":
		var b struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		}
		if err := json.Unmarshal(first, &b); err != nil {
			return nil, fmt.Errorf("parse orderbook: %w", err)
		}
		book := &OrderBook{Bids: make([]PriceLevel, 0, len(b.Bids)), Asks: make([]PriceLevel, 0, len(b.Asks))}
		for _, lv := range b.Bids {
			if len(lv) >= 2 {
				book.Bids = append(book.Bids, PriceLevel{parseFloat(lv[0]), parseFloat(lv[1])})
			}
		}
		for _, lv := range b.Asks {
			if len(lv) >= 2 {
				book.Asks = append(book.Asks, PriceLevel{parseFloat(lv[0]), parseFloat(lv[1])})
			}
		}
		return book, nil

	case "funding":
		var f struct {
			InstID          string `json:"instId"`
			FundingRate     string `json:"fundingRate"`
			NextFundingTime string `json:"nextFundingTime"`
		}
		if err := json.Unmarshal(first, &f); err != nil {
			return nil, fmt.Errorf("parse funding: %w", err)
		}
		next := ""
		if ms, err := strconv.ParseInt(f.NextFundingTime, 10, 64); err == nil && ms > 0 {
			next = time.UnixMilli(ms).UTC().Format(time.RFC3339)
		}
		return &Funding{
			Symbol:         f.InstID,
			FundingRate:    parseFloat(f.FundingRate),
			NextFundingUTC: next,
		}, nil

	case "open_interest":
		var oi struct {
			InstID string `json:"instId"`
			OI     string `json:"oi"`
			OICcy  string `json:"oiCcy"`
		}
		if err := json.Unmarshal(first, &oi); err != nil {
			return nil, fmt.Errorf("parse open interest: %w", err)
		}
		return &OpenInterest{
			Symbol:       oi.InstID,
			OpenInterest: parseFloat(oi.OICcy),
		}, nil

	default:
		return nil, fmt.Errorf("okx: unsupported data type %q", dataType)
	}
}

var _ Adapter = (*OKXAdapter)(nil)
