package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// KrakenAdapter serves spot market data from the Kraken public API.
type KrakenAdapter struct {
	BaseAdapter
}

func newKraken(d Descriptor, key, secret string) (Adapter, error) {
	return &KrakenAdapter{
		BaseAdapter: newBase("kraken", d, map[string]string{
			"ticker": "/0/public/Ticker",
			"trades": "/0/public/Trades",
		}, key, secret),
	}, nil
}

// krakenAssets maps common symbols to Kraken's legacy asset codes.
var krakenAssets = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

// FetchRaw maps the normalized pair onto Kraken's concatenated form with its
// legacy asset codes (BTC/USD -> XBTUSD).
func (a *KrakenAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if sym, ok := req.Params["symbol"]; ok {
		base, quote := splitPair(sym)
		if alias, ok := krakenAssets[base]; ok {
			base = alias
		}
		req.Params = map[string]string{"pair": base + quote}
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

// krakenEnvelope is the common {error, result} wrapper. The result object is
// keyed by Kraken's internal pair name, which differs from the requested
// pair, so transforms take the first entry.
type krakenEnvelope struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

func krakenFirst(raw []byte) (string, json.RawMessage, error) {
	var env krakenEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("parse response: %w", err)
	}
	if len(env.Error) > 0 {
		return "", nil, fmt.Errorf("kraken error: %s", env.Error[0])
	}
	for pair, v := range env.Result {
		if pair == "last" { // trades responses carry a cursor alongside the pair
			continue
		}
		return pair, v, nil
	}
	return "", nil, fmt.Errorf("empty result")
}

func (a *KrakenAdapter) Transform(raw []byte, dataType string) (any, error) {
	pair, first, err := krakenFirst(raw)
	if err != nil {
		return nil, err
	}

	switch dataType {
	case "ticker":
		var t struct {
			C []string `json:"c"` // last trade [price, lot volume]
			B []string `json:"b"` // best bid [price, whole lot, lot]
			A []string `json:"a"` // best ask
			V []string `json:"v"` // volume [today, 24h]
			O string   `json:"o"` // today's opening price
		}
		if err := json.Unmarshal(first, &t); err != nil {
			return nil, fmt.Errorf("parse ticker: %w", err)
		}
		last := firstFloat(t.C)
		open := parseFloat(t.O)
		change := 0.0
		if open > 0 {
			change = (last - open) / open * 100
		}
		vol := 0.0
		if len(t.V) > 1 {
			vol = parseFloat(t.V[1]) * last
		}
		return &Ticker{
			Symbol:           pair,
			Last:             last,
			Bid:              firstFloat(t.B),
			Ask:              firstFloat(t.A),
			Volume24h:        vol,
			Change24hPercent: change,
		}, nil

	case "trades":
		// Each trade is [price, volume, time, buy/sell, market/limit, misc, id].
		var list [][]any
		if err := json.Unmarshal(first, &list); err != nil {
			return nil, fmt.Errorf("parse trades: %w", err)
		}
		out := &Trades{Symbol: pair, Trades: make([]Trade, 0, len(list))}
		for _, row := range list {
			if len(row) < 4 {
				continue
			}
			tr := Trade{
				Price:    anyFloat(row[0]),
				Quantity: anyFloat(row[1]),
			}
			if ts, ok := row[2].(float64); ok {
				tr.TimeUTC = time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
			}
			if side, ok := row[3].(string); ok {
				if side == "b" {
					tr.Side = "buy"
				} else {
					tr.Side = "sell"
				}
			}
			out.Trades = append(out.Trades, tr)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("kraken: unsupported data type %q", dataType)
	}
}

func firstFloat(ss []string) float64 {
	if len(ss) == 0 {
		return 0
	}
	return parseFloat(ss[0])
}

func anyFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}

var _ Adapter = (*KrakenAdapter)(nil)
