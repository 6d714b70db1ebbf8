package adapters

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// tokenSkew renews the GoPlus access token this long before it expires so an
// in-flight request never races the cutoff.
const tokenSkew = time.Minute

// GoPlusAdapter runs token contract risk scans. The public tier works
// unauthenticated at a lower quota; with an app key and secret the adapter
// signs for a short-lived access token and refreshes it under a lock.
type GoPlusAdapter struct {
	BaseAdapter

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func newGoPlus(d Descriptor, key, secret string) (Adapter, error) {
	return &GoPlusAdapter{
		BaseAdapter: newBase("goplus", d, map[string]string{
			"security": "/api/v1/token_security/{chain_id}",
		}, key, secret),
	}, nil
}

// goplusChainIDs maps chain names to GoPlus numeric chain ids.
var goplusChainIDs = map[string]string{
	"ethereum":  "1",
	"bsc":       "56",
	"polygon":   "137",
	"arbitrum":  "42161",
	"optimism":  "10",
	"base":      "8453",
	"avalanche": "43114",
	"fantom":    "250",
}

func (a *GoPlusAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	p := map[string]string{}
	if id, ok := req.Params["chain_id"]; ok {
		p["chain_id"] = id
	} else if chain, ok := req.Params["chain"]; ok {
		id, known := goplusChainIDs[strings.ToLower(chain)]
		if !known {
			return nil, newError(a.name, ErrNotFound, "unsupported chain %q", chain)
		}
		p["chain_id"] = id
	}
	if addr, ok := req.Params["token_address"]; ok {
		p["contract_addresses"] = strings.ToLower(addr)
	} else if addr, ok := req.Params["contract_addresses"]; ok {
		p["contract_addresses"] = addr
	}
	req.Params = p

	if a.apiKey != "" && a.apiSecret != "" {
		token, err := a.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Headers = map[string]string{"Authorization": token}
	}
	return a.do(ctx, req, http.MethodGet, nil)
}

// accessToken returns a cached token or signs for a fresh one. The signature
// scheme is sha1(app_key + unix_time + app_secret) per the GoPlus auth flow.
func (a *GoPlusAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && time.Now().Before(a.tokenExp.Add(-tokenSkew)) {
		return a.token, nil
	}

	now := strconv.FormatInt(time.Now().Unix(), 10)
	sum := sha1.Sum([]byte(a.apiKey + now + a.apiSecret))
	body, err := json.Marshal(map[string]string{
		"app_key": a.apiKey,
		"time":    now,
		"sign":    hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return "", err
	}
	rr, err := a.do(ctx, Request{Endpoint: "/api/v1/token"}, http.MethodPost, body)
	if err != nil {
		return "", err
	}
	if code := gjson.GetBytes(rr.Body, "code").Int(); code != 1 {
		return "", newError(a.name, ErrAuth, "token grant failed: %s",
			gjson.GetBytes(rr.Body, "message").String())
	}
	token := gjson.GetBytes(rr.Body, "result.access_token").String()
	if token == "" {
		return "", newError(a.name, ErrAuth, "token grant returned empty token")
	}

	a.token = token
	// expires_in arrives as an absolute unix timestamp on current responses
	// and as a relative second count on older ones.
	exp := gjson.GetBytes(rr.Body, "result.expires_in").Int()
	switch {
	case exp > 1e9:
		a.tokenExp = time.Unix(exp, 0)
	case exp > 0:
		a.tokenExp = time.Now().Add(time.Duration(exp) * time.Second)
	default:
		a.tokenExp = time.Now().Add(30 * time.Minute)
	}
	return a.token, nil
}

func (a *GoPlusAdapter) Transform(raw []byte, dataType string) (any, error) {
	if code := gjson.GetBytes(raw, "code").Int(); code != 1 {
		return nil, fmt.Errorf("api error %d: %s", code, gjson.GetBytes(raw, "message").String())
	}
	switch dataType {
	case "security":
		// The result object is keyed by the queried contract address.
		entry := gjson.GetBytes(raw, "result.*")
		if !entry.Exists() {
			return nil, fmt.Errorf("no security report for contract")
		}
		return Security{
			IsOpenSource:   entry.Get("is_open_source").String() == "1",
			IsHoneypot:     entry.Get("is_honeypot").String() == "1",
			BuyTaxPercent:  entry.Get("buy_tax").Float() * 100,
			SellTaxPercent: entry.Get("sell_tax").Float() * 100,
			HolderCount:    int(entry.Get("holder_count").Int()),
		}, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*GoPlusAdapter)(nil)
