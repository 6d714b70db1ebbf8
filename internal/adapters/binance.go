package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// parseFloat converts provider numeric strings ("95000.10") to float64,
// tolerating empty and missing-value markers.
func parseFloat(s string) float64 {
	if s == "" || s == "." {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// BinanceAdapter serves spot market data from the Binance public API.
type BinanceAdapter struct {
	BaseAdapter
}

func newBinance(d Descriptor, key, secret string) (Adapter, error) {
	return &BinanceAdapter{
		BaseAdapter: newBase("binance", d, map[string]string{
			"ticker":    "/api/v3/ticker/24hr",
			"market":    "/api/v3/ticker/24hr",
			"orderbook": "/api/v3/depth",
			"trades":    "/api/v3/trades",
		}, key, secret),
	}, nil
}

// FetchRaw maps the normalized pair onto Binance's concatenated symbol form
// (BTC/USDT -> BTCUSDT).
func (a *BinanceAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if sym, ok := req.Params["symbol"]; ok {
		base, quote := splitPair(sym)
		p := map[string]string{"symbol": base + quote}
		if limit, ok := req.Params["limit"]; ok {
			p["limit"] = limit
		}
		req.Params = p
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	QuoteVolume        string `json:"quoteVolume"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

type binanceDepth struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

type binanceTrade struct {
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// Transform normalizes Binance payloads. Numeric fields arrive as strings.
func (a *BinanceAdapter) Transform(raw []byte, dataType string) (any, error) {
	switch dataType {
	case "ticker":
		var t binanceTicker
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parse ticker: %w", err)
		}
		return &Ticker{
			Symbol:           t.Symbol,
			Last:             parseFloat(t.LastPrice),
			Bid:              parseFloat(t.BidPrice),
			Ask:              parseFloat(t.AskPrice),
			Volume24h:        parseFloat(t.QuoteVolume),
			Change24hPercent: parseFloat(t.PriceChangePercent),
		}, nil

	case "market":
		var t binanceTicker
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parse market: %w", err)
		}
		return &Market{
			Price:            parseFloat(t.LastPrice),
			Volume24h:        parseFloat(t.QuoteVolume),
			Change24hPercent: parseFloat(t.PriceChangePercent),
			High24h:          parseFloat(t.HighPrice),
			Low24h:           parseFloat(t.LowPrice),
		}, nil

	case "orderbook":
		var d binanceDepth
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parse orderbook: %w", err)
		}
		book := &OrderBook{Bids: make([]PriceLevel, 0, len(d.Bids)), Asks: make([]PriceLevel, 0, len(d.Asks))}
		for _, lv := range d.Bids {
			book.Bids = append(book.Bids, PriceLevel{parseFloat(lv[0]), parseFloat(lv[1])})
		}
		for _, lv := range d.Asks {
			book.Asks = append(book.Asks, PriceLevel{parseFloat(lv[0]), parseFloat(lv[1])})
		}
		return book, nil

	case "trades":
		var list []binanceTrade
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("parse trades: %w", err)
		}
		out := &Trades{Trades: make([]Trade, 0, len(list))}
		for _, tr := range list {
			side := "buy"
			if tr.IsBuyerMaker {
				side = "sell"
			}
			out.Trades = append(out.Trades, Trade{
				Price:    parseFloat(tr.Price),
				Quantity: parseFloat(tr.Qty),
				Side:     side,
				TimeUTC:  time.UnixMilli(tr.Time).UTC().Format(time.RFC3339),
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("binance: unsupported data type %q", dataType)
	}
}

var _ Adapter = (*BinanceAdapter)(nil)
