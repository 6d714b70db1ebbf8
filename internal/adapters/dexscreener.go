package adapters

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// maxPoolsPerResponse caps the pair list from search results. DexScreener
// matches by relevance and the tail is mostly illiquid clones.
const maxPoolsPerResponse = 10

// DexScreenerAdapter covers DEX pairs across chains through the public
// search endpoint. No credentials, aggressive caching upstream, so the
// quota stays generous.
type DexScreenerAdapter struct {
	BaseAdapter
}

func newDexScreener(d Descriptor, key, secret string) (Adapter, error) {
	return &DexScreenerAdapter{
		BaseAdapter: newBase("dexscreener", d, map[string]string{
			"pools": "/latest/dex/search",
		}, key, secret),
	}, nil
}

func (a *DexScreenerAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	if req.Params["symbol"] == "" {
		return nil, fmt.Errorf("pools query needs a symbol param")
	}
	// Search takes a free-text q param rather than a symbol path segment.
	base, _ := splitPair(req.Params["symbol"])
	req.Params = map[string]string{"q": base}
	return a.do(ctx, req, http.MethodGet, nil)
}

func (a *DexScreenerAdapter) Transform(raw []byte, dataType string) (any, error) {
	switch dataType {
	case "pools":
		pairs := gjson.GetBytes(raw, "pairs")
		if !pairs.Exists() {
			return nil, fmt.Errorf("response carries no pairs array")
		}
		out := Pools{Pools: []Pool{}}
		pairs.ForEach(func(_, p gjson.Result) bool {
			out.Pools = append(out.Pools, Pool{
				Pair:         p.Get("baseToken.symbol").String() + "/" + p.Get("quoteToken.symbol").String(),
				DEX:          p.Get("chainId").String() + ":" + p.Get("dexId").String(),
				TVLUSD:       p.Get("liquidity.usd").Float(),
				Volume24hUSD: p.Get("volume.h24").Float(),
				PriceUSD:     p.Get("priceUsd").Float(),
			})
			return len(out.Pools) < maxPoolsPerResponse
		})
		if len(out.Pools) == 0 {
			return nil, fmt.Errorf("no pairs matched query")
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*DexScreenerAdapter)(nil)
