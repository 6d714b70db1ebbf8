package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
)

// EtherscanAdapter reads ERC-20 contract state. Etherscan keeps everything
// behind a single /api endpoint and selects the operation with module and
// action query params, so the path table carries those inline.
type EtherscanAdapter struct {
	BaseAdapter
}

func newEtherscan(d Descriptor, key, secret string) (Adapter, error) {
	return &EtherscanAdapter{
		BaseAdapter: newBase("etherscan", d, map[string]string{
			"supply":  "/api?module=stats&action=tokensupply&contractaddress={address}",
			"holders": "/api?module=token&action=tokenholdercount&contractaddress={address}",
		}, key, secret),
	}, nil
}

// FetchRaw feeds the contract address into the path template and injects
// the API key as a query param. Etherscan does not accept header auth.
func (a *EtherscanAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	p := map[string]string{}
	if addr, ok := req.Params["token_address"]; ok {
		p["address"] = addr
	} else if addr, ok := req.Params["address"]; ok {
		p["address"] = addr
	}
	if a.apiKey != "" {
		p["apikey"] = a.apiKey
	}
	req.Params = p
	return a.do(ctx, req, http.MethodGet, nil)
}

func (a *EtherscanAdapter) Transform(raw []byte, dataType string) (any, error) {
	if gjson.GetBytes(raw, "status").String() == "0" {
		// On failure the result field carries the human-readable reason.
		return nil, fmt.Errorf("api error: %s", gjson.GetBytes(raw, "result").String())
	}
	result := gjson.GetBytes(raw, "result").String()
	switch dataType {
	case "supply":
		units, err := strconv.ParseFloat(result, 64)
		if err != nil {
			return nil, fmt.Errorf("bad token supply %q", result)
		}
		// tokensupply reports raw units, assume the standard 18 decimals.
		return Supply{Total: units / 1e18}, nil
	case "holders":
		count, err := strconv.Atoi(result)
		if err != nil {
			return nil, fmt.Errorf("bad holder count %q", result)
		}
		return Holders{HolderCount: count}, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*EtherscanAdapter)(nil)
