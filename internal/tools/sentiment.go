package tools

var sentimentFields = []string{"news", "fear_greed", "trending"}

// newSentimentTool assembles sentiment_news: headlines, the fear/greed
// index and trending search interest.
func newSentimentTool() *Tool {
	return &Tool{
		Name: "sentiment_news",
		Description: "Market mood: recent headlines (optionally filtered by asset), " +
			"the Fear & Greed index and trending search assets.",
		Plan: []Capability{
			{
				Name: "news",
				Prepare: func(inv *Invocation) (map[string]string, error) {
					if inv.Args.Symbol == "" {
						return map[string]string{}, nil
					}
					return map[string]string{"symbol": inv.Args.Symbol}, nil
				},
			},
			{
				Name:    "fear_greed",
				Prepare: emptyParams,
			},
			{
				Name:    "trending",
				Prepare: emptyParams,
			},
		},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Optional asset filter for the news feed.",
				},
				"include_fields": fieldSelector(sentimentFields...),
			},
			"additionalProperties": false,
		},
		OutputSchema: envelopeSchema(map[string]any{
			"news":       capabilityDoc("Recent articles with title, url, source and publication time."),
			"fear_greed": capabilityDoc("Fear & Greed index value and classification."),
			"trending":   capabilityDoc("Most-searched assets right now."),
		}),
		Examples: []map[string]any{
			{},
			{"symbol": "BTC", "include_fields": []any{"news", "fear_greed"}},
		},
		AsOfSemantics: "as_of_utc marks the fetch time; articles carry their own publication timestamps.",
		Limitations: []string{
			"fear_greed and trending ignore the symbol filter",
			"the index publishes once per day",
		},
		CostHints: []string{
			"cryptopanic: auth token required even for public posts",
			"alternative_me, coingecko trending: free",
		},
	}
}

// emptyParams is for capabilities with no upstream parameters.
func emptyParams(inv *Invocation) (map[string]string, error) {
	return map[string]string{}, nil
}
