package adapters

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// BlockchairAdapter is the secondary holder-count source. Blockchair signals
// failures inside the context object with a 2xx status, so Transform checks
// that before touching data.
type BlockchairAdapter struct {
	BaseAdapter
}

func newBlockchair(d Descriptor, key, secret string) (Adapter, error) {
	return &BlockchairAdapter{
		BaseAdapter: newBase("blockchair", d, map[string]string{
			"holders": "/ethereum/erc-20/{address}/stats",
		}, key, secret),
	}, nil
}

func (a *BlockchairAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	p := map[string]string{}
	if addr, ok := req.Params["token_address"]; ok {
		p["address"] = addr
	} else if addr, ok := req.Params["address"]; ok {
		p["address"] = addr
	}
	if a.apiKey != "" {
		p["key"] = a.apiKey
	}
	req.Params = p
	return a.do(ctx, req, http.MethodGet, nil)
}

func (a *BlockchairAdapter) Transform(raw []byte, dataType string) (any, error) {
	if msg := gjson.GetBytes(raw, "context.error"); msg.Exists() && msg.String() != "" {
		return nil, fmt.Errorf("api error: %s", msg.String())
	}
	switch dataType {
	case "holders":
		count := gjson.GetBytes(raw, "data.holding_addresses")
		if !count.Exists() {
			return nil, fmt.Errorf("response carries no holder stats")
		}
		return Holders{HolderCount: int(count.Int())}, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*BlockchairAdapter)(nil)
