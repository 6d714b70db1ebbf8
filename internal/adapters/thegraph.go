package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// poolQuery pulls the deepest pools that hold the requested token on either
// side, ordered by TVL so the first page is the liquid core of the market
// rather than dust pairs. Volume comes from the latest poolDayData entry
// because the pool-level volumeUSD counter is cumulative since inception.
const poolQuery = `query TokenPools($symbol: String!) {
  pools(first: 10, orderBy: totalValueLockedUSD, orderDirection: desc,
        where: {or: [{token0_: {symbol: $symbol}}, {token1_: {symbol: $symbol}}]}) {
    totalValueLockedUSD
    token0 { symbol }
    token1 { symbol }
    poolDayData(first: 1, orderBy: date, orderDirection: desc) { volumeUSD }
  }
}`

// TheGraphAdapter reads DEX pool state from a Uniswap v3 subgraph. Unlike
// the REST providers it speaks GraphQL, so FetchRaw posts a query document
// instead of expanding a path template.
type TheGraphAdapter struct {
	BaseAdapter
}

func newTheGraph(d Descriptor, key, secret string) (Adapter, error) {
	return &TheGraphAdapter{
		BaseAdapter: newBase("thegraph", d, map[string]string{
			"pools": "/subgraphs/name/uniswap/uniswap-v3",
		}, key, secret),
	}, nil
}

func (a *TheGraphAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if strings.TrimSpace(req.Params["symbol"]) == "" {
		return nil, fmt.Errorf("pools query needs a symbol param")
	}
	// Pools hold the base asset; the quote side of a pair is irrelevant here.
	base, _ := splitPair(req.Params["symbol"])
	body, err := json.Marshal(map[string]any{
		"query":     poolQuery,
		"variables": map[string]string{"symbol": base},
	})
	if err != nil {
		return nil, err
	}
	// The symbol rides in the GraphQL variables, not the URL.
	req.Params = nil
	return a.do(ctx, req, http.MethodPost, body)
}

func (a *TheGraphAdapter) Transform(raw []byte, dataType string) (any, error) {
	if msg := gjson.GetBytes(raw, "errors.0.message"); msg.Exists() {
		return nil, fmt.Errorf("subgraph error: %s", msg.String())
	}
	switch dataType {
	case "pools":
		out := Pools{Pools: []Pool{}}
		gjson.GetBytes(raw, "data.pools").ForEach(func(_, p gjson.Result) bool {
			out.Pools = append(out.Pools, Pool{
				Pair:         p.Get("token0.symbol").String() + "/" + p.Get("token1.symbol").String(),
				DEX:          "uniswap_v3",
				TVLUSD:       p.Get("totalValueLockedUSD").Float(),
				Volume24hUSD: p.Get("poolDayData.0.volumeUSD").Float(),
			})
			return true
		})
		if len(out.Pools) == 0 {
			return nil, fmt.Errorf("no pools indexed for token")
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*TheGraphAdapter)(nil)
