package tools

var derivativesFields = []string{"funding", "open_interest", "options"}

// newDerivativesTool assembles derivatives_snapshot: perpetual and options
// state for one asset.
func newDerivativesTool() *Tool {
	return &Tool{
		Name: "derivatives_snapshot",
		Description: "Derivatives state for one asset: perpetual funding rate, " +
			"open interest and an options market summary.",
		Plan: []Capability{
			{
				Name:    "funding",
				Prepare: symbolParams,
			},
			{
				Name:    "open_interest",
				Prepare: symbolParams,
			},
			{
				Name:    "options",
				Prepare: symbolParams,
			},
		},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Asset or pair; perpetual capabilities read the USDT-margined contract.",
				},
				"include_fields": fieldSelector(derivativesFields...),
			},
			"required":             []any{"symbol"},
			"additionalProperties": false,
		},
		OutputSchema: envelopeSchema(map[string]any{
			"funding":       capabilityDoc("Current funding rate and mark price of the perpetual."),
			"open_interest": capabilityDoc("Open interest in contracts and notional value."),
			"options":       capabilityDoc("Options market roll-up: instruments, open interest, 24h volume."),
		}),
		Examples: []map[string]any{
			{"symbol": "BTC"},
			{"symbol": "ETH", "include_fields": []any{"funding", "open_interest"}},
		},
		AsOfSemantics: "as_of_utc marks the snapshot observation time; funding intervals are venue-defined.",
		Limitations: []string{
			"options coverage is currency-level (Deribit), not per-instrument",
			"funding rates differ per venue; the payload reflects the serving source only",
		},
		CostHints: []string{
			"okx, bybit, deribit: free public derivatives endpoints",
		},
	}
}
