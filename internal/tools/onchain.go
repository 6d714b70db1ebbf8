package tools

import "fmt"

var onchainFields = []string{"tvl", "fees", "pools"}

// newOnchainTool assembles onchain_tvl_fees: protocol value locked, fee
// flow and DEX pool liquidity.
func newOnchainTool() *Tool {
	return &Tool{
		Name: "onchain_tvl_fees",
		Description: "On-chain protocol economics: total value locked, 24h fees and " +
			"revenue, and the deepest DEX pools for a token.",
		Plan: []Capability{
			{
				Name:    "tvl",
				Prepare: protocolParams("tvl"),
			},
			{
				Name:    "fees",
				Prepare: protocolParams("fees"),
			},
			{
				Name: "pools",
				Prepare: func(inv *Invocation) (map[string]string, error) {
					if inv.Args.Symbol == "" {
						return nil, fmt.Errorf("pools needs a symbol")
					}
					return map[string]string{"symbol": inv.Args.Symbol}, nil
				},
			},
		},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"protocol": map[string]any{
					"type":        "string",
					"description": "Protocol slug, e.g. uniswap or aave.",
				},
				"symbol": map[string]any{
					"type":        "string",
					"description": "Token symbol for the pools capability.",
				},
				"include_fields": fieldSelector(onchainFields...),
			},
			"anyOf": []any{
				map[string]any{"required": []any{"protocol"}},
				map[string]any{"required": []any{"symbol"}},
			},
			"additionalProperties": false,
		},
		OutputSchema: envelopeSchema(map[string]any{
			"tvl":   capabilityDoc("Total value locked with a per-chain breakdown."),
			"fees":  capabilityDoc("24h fees and protocol revenue."),
			"pools": capabilityDoc("Deepest liquidity pools holding the token."),
		}),
		Examples: []map[string]any{
			{"protocol": "uniswap", "include_fields": []any{"tvl", "fees"}},
			{"protocol": "aave", "symbol": "AAVE", "include_fields": "all"},
		},
		AsOfSemantics: "as_of_utc marks the indexer observation time; TVL series lag the chain by minutes.",
		Limitations: []string{
			"tvl and fees need a protocol slug; pools needs a token symbol",
			"pool lists rank by indexed TVL and may omit freshly deployed pools",
		},
		CostHints: []string{
			"defillama, dexscreener: free public APIs",
			"thegraph: hosted subgraph queries, fair-use limits",
		},
	}
}

// protocolParams requires the protocol slug shared by the TVL-style
// capabilities.
func protocolParams(capability string) PrepareFunc {
	return func(inv *Invocation) (map[string]string, error) {
		if inv.Args.Protocol == "" {
			return nil, fmt.Errorf("%s needs a protocol", capability)
		}
		return map[string]string{"protocol": inv.Args.Protocol}, nil
	}
}
