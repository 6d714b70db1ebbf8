package tools

import "strconv"

var microstructureFields = []string{"ticker", "orderbook", "trades"}

// newMicrostructureTool assembles market_microstructure: order-level venue
// state for one trading pair.
func newMicrostructureTool() *Tool {
	return &Tool{
		Name: "market_microstructure",
		Description: "Exchange microstructure for one trading pair: ticker quote, " +
			"order book snapshot and recent public trades.",
		Plan: []Capability{
			{
				Name:    "ticker",
				Prepare: symbolParams,
			},
			{
				Name:    "orderbook",
				Prepare: depthParams,
			},
			{
				Name:    "trades",
				Prepare: depthParams,
			},
		},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Trading pair like BTC/USDT; a bare asset symbol quotes against USDT.",
				},
				"include_fields": fieldSelector(microstructureFields...),
				"limit": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     500,
					"description": "Order book depth / trade count cap.",
				},
			},
			"required":             []any{"symbol"},
			"additionalProperties": false,
		},
		OutputSchema: envelopeSchema(map[string]any{
			"ticker":    capabilityDoc("Last, bid/ask, 24h volume and change."),
			"orderbook": capabilityDoc("Bid and ask levels as [price, quantity] pairs."),
			"trades":    capabilityDoc("Recent public trades, newest last."),
		}),
		Examples: []map[string]any{
			{"symbol": "BTC/USDT"},
			{"symbol": "ETH/USDT", "include_fields": []any{"orderbook"}, "limit": 50},
		},
		AsOfSemantics: "as_of_utc marks the snapshot observation time; venue matching timestamps ride inside the payloads.",
		Limitations: []string{
			"order books and trades are point-in-time snapshots, not streams",
			"pair coverage differs per venue; unlisted pairs fall through the chain",
		},
		CostHints: []string{
			"binance, okx, kraken: free public market data endpoints",
		},
	}
}

// depthParams adds the optional depth cap to the pair parameters.
func depthParams(inv *Invocation) (map[string]string, error) {
	p, err := symbolParams(inv)
	if err != nil {
		return nil, err
	}
	if inv.Args.Limit > 0 {
		p["limit"] = strconv.Itoa(inv.Args.Limit)
	}
	return p, nil
}
