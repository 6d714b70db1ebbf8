package tools

var macroFields = []string{"rates", "inflation", "fx"}

// fredSeries maps each macro capability to its FRED series.
var fredSeries = map[string]string{
	"rates":     "DGS10",    // 10-year treasury constant maturity
	"inflation": "CPIAUCSL", // CPI, all urban consumers
	"fx":        "DTWEXBGS", // broad trade-weighted dollar index
}

// newMacroTool assembles macro_indicators: the latest reading of the macro
// series crypto desks watch.
func newMacroTool() *Tool {
	return &Tool{
		Name: "macro_indicators",
		Description: "Latest macro observations: 10y treasury yield, CPI and the " +
			"trade-weighted dollar index.",
		Plan: []Capability{
			{
				Name:    "rates",
				Prepare: seriesParams("rates"),
			},
			{
				Name:    "inflation",
				Prepare: seriesParams("inflation"),
			},
			{
				Name:    "fx",
				Prepare: seriesParams("fx"),
			},
		},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_fields": fieldSelector(macroFields...),
			},
			"additionalProperties": false,
		},
		OutputSchema: envelopeSchema(map[string]any{
			"rates":     capabilityDoc("10-year treasury constant maturity yield (DGS10)."),
			"inflation": capabilityDoc("Consumer price index, all urban consumers (CPIAUCSL)."),
			"fx":        capabilityDoc("Broad trade-weighted dollar index (DTWEXBGS)."),
		}),
		Examples: []map[string]any{
			{},
			{"include_fields": []any{"rates"}},
		},
		AsOfSemantics: "as_of_utc marks the fetch time; each payload's as_of_date is the series' own publication date.",
		Limitations: []string{
			"series are fixed per capability; observations publish on the Fed's schedule, often with daily or monthly lag",
		},
		CostHints: []string{
			"fred: free API key, generous quota",
		},
	}
}

// seriesParams pins one capability to its FRED series.
func seriesParams(capability string) PrepareFunc {
	return func(inv *Invocation) (map[string]string, error) {
		return map[string]string{"series_id": fredSeries[capability]}, nil
	}
}
