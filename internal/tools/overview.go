package tools

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/quantfab/market-gateway/internal/fabric"
)

var overviewFields = []string{"basic", "market", "supply", "holders", "security", "developer"}

// newOverviewTool assembles crypto_overview: one asset's identity, market,
// supply, holder, contract-risk and repository picture.
func newOverviewTool() *Tool {
	return &Tool{
		Name: "crypto_overview",
		Description: "Aggregated asset overview: identity, cross-checked market data, " +
			"supply, holder distribution, contract security and repository activity.",
		Plan: []Capability{
			{
				Name:    "basic",
				Prepare: symbolParams,
			},
			{
				Name:    "market",
				Verify:  []VerifyField{{Field: "price"}},
				Prepare: symbolParams,
			},
			{
				Name: "supply",
				Prepare: func(inv *Invocation) (map[string]string, error) {
					p, err := symbolParams(inv)
					if err != nil {
						return nil, err
					}
					// Explorer-backed supply reads need the contract; the
					// aggregators ignore it.
					if inv.Args.TokenAddress != "" {
						p["token_address"] = inv.Args.TokenAddress
					}
					return p, nil
				},
			},
			{
				Name:    "holders",
				Prepare: contractParams("holders"),
			},
			{
				Name:    "security",
				Prepare: contractParams("security"),
			},
			{
				Name:  "developer",
				After: []string{"basic"},
				Prepare: func(inv *Invocation) (map[string]string, error) {
					basic, ok := inv.Payload("basic")
					if !ok {
						return nil, fmt.Errorf("basic info unavailable, cannot derive repository")
					}
					repo := gjson.GetBytes(basic, "repo_url").String()
					if repo == "" {
						return nil, fmt.Errorf("basic info carries no repository url")
					}
					owner, name, err := splitRepoURL(repo)
					if err != nil {
						return nil, err
					}
					return map[string]string{"owner": owner, "repo": name}, nil
				},
			},
		},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol":         map[string]any{"type": "string", "description": "Asset symbol, e.g. BTC."},
				"include_fields": fieldSelector(overviewFields...),
				"chain":          map[string]any{"type": "string", "description": "Chain name for contract-level capabilities, e.g. ethereum."},
				"token_address":  map[string]any{"type": "string", "description": "Token contract address on chain."},
			},
			"required":             []any{"symbol"},
			"additionalProperties": false,
		},
		OutputSchema: envelopeSchema(map[string]any{
			"basic":     capabilityDoc("Asset identity: name, chain, contract, website, repository."),
			"market":    capabilityDoc("Spot market summary with cross-checked price."),
			"supply":    capabilityDoc("Circulating, total and max supply."),
			"holders":   capabilityDoc("Holder count and top-holder sample."),
			"security":  capabilityDoc("Contract risk summary: source verification, honeypot, taxes."),
			"developer": capabilityDoc("Repository activity derived from the basic info."),
		}),
		Examples: []map[string]any{
			{"symbol": "BTC", "include_fields": []any{"basic", "market"}},
			{
				"symbol":         "UNI",
				"chain":          "ethereum",
				"token_address":  "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984",
				"include_fields": "all",
			},
		},
		AsOfSemantics: "as_of_utc marks when each provider response was observed, not the venue's own event time.",
		Limitations: []string{
			"holders and security need chain and token_address; without them those capabilities return a warning",
			"developer data exists only for assets whose basic info links a GitHub repository",
		},
		CostHints: []string{
			"coingecko: free tier with aggressive rate limits",
			"coinmarketcap: consumes API credits per call",
			"etherscan, goplus: free keys with low per-second quotas",
		},
	}
}

// symbolParams is the common single-asset parameter set.
func symbolParams(inv *Invocation) (map[string]string, error) {
	if inv.Args.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	return map[string]string{"symbol": inv.Args.Symbol}, nil
}

// contractParams requires the chain and token_address disambiguators
// contract-level capabilities cannot work without.
func contractParams(capability string) PrepareFunc {
	return func(inv *Invocation) (map[string]string, error) {
		if inv.Args.Chain == "" || inv.Args.TokenAddress == "" {
			return nil, &fabric.AmbiguousSymbolError{
				Symbol: inv.Args.Symbol,
				Detail: capability + " needs chain and token_address",
			}
		}
		return map[string]string{
			"chain":         inv.Args.Chain,
			"token_address": inv.Args.TokenAddress,
		}, nil
	}
}

// splitRepoURL extracts owner and repository name from a GitHub URL.
func splitRepoURL(raw string) (owner, repo string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("bad repository url %q", raw)
	}
	if !strings.HasSuffix(u.Host, "github.com") {
		return "", "", fmt.Errorf("unsupported repository host %q", u.Host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository url %q has no owner/name", raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
