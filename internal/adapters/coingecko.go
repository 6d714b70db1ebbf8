package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// CoinGeckoAdapter serves asset profiles, market summaries, supply and
// trending data from the CoinGecko public API. Coin endpoints take the
// CoinGecko asset id (e.g. "bitcoin"), resolved from the symbol unless the
// caller passes an explicit id param.
type CoinGeckoAdapter struct {
	BaseAdapter
}

// coingeckoIDs maps major asset symbols to CoinGecko ids where the id is
// not simply the lower-cased name.
var coingeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"USDC":  "usd-coin",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"TRX":   "tron",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"AVAX":  "avalanche-2",
	"LTC":   "litecoin",
	"ATOM":  "cosmos",
	"ARB":   "arbitrum",
	"OP":    "optimism",
	"SHIB":  "shiba-inu",
}

func coingeckoID(symbol string) string {
	base, _ := splitPair(symbol)
	if id, ok := coingeckoIDs[base]; ok {
		return id
	}
	return strings.ToLower(base)
}

func newCoinGecko(d Descriptor, key, secret string) (Adapter, error) {
	a := &CoinGeckoAdapter{
		BaseAdapter: newBase("coingecko", d, map[string]string{
			"basic":    "/api/v3/coins/{id}",
			"market":   "/api/v3/coins/{id}",
			"supply":   "/api/v3/coins/{id}",
			"trending": "/api/v3/search/trending",
		}, key, secret),
	}
	if key != "" {
		a.authorize = func(req *http.Request) { req.Header.Set("x-cg-demo-api-key", key) }
	}
	return a, nil
}

// FetchRaw resolves the {id} path segment from the symbol when no explicit
// id was given. Trending takes no params.
func (a *CoinGeckoAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if _, ok := req.Params["id"]; !ok {
		if sym, ok := req.Params["symbol"]; ok {
			req.Params = map[string]string{"id": coingeckoID(sym)}
		}
	}
	return a.BaseAdapter.FetchRaw(ctx, req)
}

func (a *CoinGeckoAdapter) Transform(raw []byte, dataType string) (any, error) {
	if errMsg := gjson.GetBytes(raw, "error"); errMsg.Exists() {
		return nil, fmt.Errorf("coingecko error: %s", errMsg.String())
	}

	switch dataType {
	case "basic":
		basic := &Basic{
			Symbol:      gjson.GetBytes(raw, "symbol").String(),
			Name:        gjson.GetBytes(raw, "name").String(),
			Description: gjson.GetBytes(raw, "description.en").String(),
			Website:     gjson.GetBytes(raw, "links.homepage.0").String(),
			RepoURL:     gjson.GetBytes(raw, "links.repos_url.github.0").String(),
			Rank:        int(gjson.GetBytes(raw, "market_cap_rank").Int()),
		}
		// First platform entry identifies the canonical chain and contract.
		gjson.GetBytes(raw, "platforms").ForEach(func(chain, addr gjson.Result) bool {
			if chain.String() != "" && addr.String() != "" {
				basic.Chain = chain.String()
				basic.TokenAddress = addr.String()
				return false
			}
			return true
		})
		if basic.Name == "" {
			return nil, fmt.Errorf("parse basic: missing name")
		}
		return basic, nil

	case "market":
		md := gjson.GetBytes(raw, "market_data")
		if !md.Exists() {
			return nil, fmt.Errorf("parse market: missing market_data")
		}
		return &Market{
			Price:            md.Get("current_price.usd").Float(),
			Volume24h:        md.Get("total_volume.usd").Float(),
			MarketCap:        md.Get("market_cap.usd").Float(),
			Change24hPercent: md.Get("price_change_percentage_24h").Float(),
			High24h:          md.Get("high_24h.usd").Float(),
			Low24h:           md.Get("low_24h.usd").Float(),
		}, nil

	case "supply":
		md := gjson.GetBytes(raw, "market_data")
		if !md.Exists() {
			return nil, fmt.Errorf("parse supply: missing market_data")
		}
		return &Supply{
			Circulating: md.Get("circulating_supply").Float(),
			Total:       md.Get("total_supply").Float(),
			Max:         md.Get("max_supply").Float(),
		}, nil

	case "trending":
		out := &Trending{}
		gjson.GetBytes(raw, "coins").ForEach(func(_, coin gjson.Result) bool {
			item := coin.Get("item")
			out.Coins = append(out.Coins, TrendingCoin{
				ID:     item.Get("id").String(),
				Symbol: item.Get("symbol").String(),
				Rank:   int(item.Get("market_cap_rank").Int()),
			})
			return true
		})
		return out, nil

	default:
		return nil, fmt.Errorf("coingecko: unsupported data type %q", dataType)
	}
}

var _ Adapter = (*CoinGeckoAdapter)(nil)
