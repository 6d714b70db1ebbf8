package adapters

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// DefiLlamaAdapter serves protocol TVL and fee summaries from the DefiLlama
// public API, keyed by protocol slug.
type DefiLlamaAdapter struct {
	BaseAdapter
}

func newDefiLlama(d Descriptor, key, secret string) (Adapter, error) {
	return &DefiLlamaAdapter{
		BaseAdapter: newBase("defillama", d, map[string]string{
			"tvl":  "/protocol/{protocol}",
			"fees": "/summary/fees/{protocol}",
		}, key, secret),
	}, nil
}

func (a *DefiLlamaAdapter) Transform(raw []byte, dataType string) (any, error) {
	switch dataType {
	case "tvl":
		name := gjson.GetBytes(raw, "name")
		if !name.Exists() {
			return nil, fmt.Errorf("parse tvl: missing protocol name")
		}
		out := &TVL{Protocol: name.String()}
		chains := gjson.GetBytes(raw, "currentChainTvls")
		if chains.Exists() {
			out.ChainTVLs = make(map[string]float64)
			chains.ForEach(func(chain, v gjson.Result) bool {
				out.ChainTVLs[chain.String()] = v.Float()
				out.TVLUSD += v.Float()
				return true
			})
		}
		// The tvl series' last point is the current total; prefer it when
		// present since chain entries include borrowed/staked buckets.
		if series := gjson.GetBytes(raw, "tvl"); series.IsArray() {
			arr := series.Array()
			if len(arr) > 0 {
				if last := arr[len(arr)-1].Get("totalLiquidityUSD"); last.Exists() {
					out.TVLUSD = last.Float()
				}
			}
		}
		return out, nil

	case "fees":
		name := gjson.GetBytes(raw, "name")
		if !name.Exists() {
			return nil, fmt.Errorf("parse fees: missing protocol name")
		}
		return &Fees{
			Protocol:      name.String(),
			Fees24hUSD:    gjson.GetBytes(raw, "total24h").Float(),
			Revenue24hUSD: gjson.GetBytes(raw, "totalRevenue24h").Float(),
		}, nil

	default:
		return nil, fmt.Errorf("defillama: unsupported data type %q", dataType)
	}
}

var _ Adapter = (*DefiLlamaAdapter)(nil)
