package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantfab/market-gateway/internal/ratelimit"
)

const (
	// defaultTimeout for upstream calls without a configured deadline.
	defaultTimeout = 10 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large provider responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits provider error bodies in error messages to avoid log bloat.
	maxErrorBodyLen = 500
)

// BaseAdapter carries the shared plumbing every provider needs: base URL,
// HTTP client, per-call timeout, token bucket and the data-type path table.
// Concrete adapters embed it by value and add their Transform.
type BaseAdapter struct {
	name      string
	baseURL   string
	timeout   time.Duration
	client    *http.Client
	bucket    *ratelimit.Bucket
	paths     map[string]string
	apiKey    string
	apiSecret string

	// authorize, when set, adds provider auth to an outgoing request.
	authorize func(req *http.Request)
}

// newBase builds the shared adapter core from a descriptor. paths maps each
// supported data type to the provider path, with {param} placeholders filled
// from Request.Params.
func newBase(name string, d Descriptor, paths map[string]string, key, secret string) BaseAdapter {
	return BaseAdapter{
		name:      name,
		baseURL:   strings.TrimRight(d.BaseURL, "/"),
		timeout:   d.Timeout(),
		client:    &http.Client{}, // timeout via context, not client
		bucket:    ratelimit.NewBucket(d.RateLimitPerMin),
		paths:     paths,
		apiKey:    key,
		apiSecret: secret,
	}
}

// Name returns the source identifier.
func (a *BaseAdapter) Name() string {
	return a.name
}

// FetchRaw performs one GET against the resolved endpoint. Adapters with
// non-GET upstreams (GraphQL) or token handshakes override this.
func (a *BaseAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	return a.do(ctx, req, http.MethodGet, nil)
}

// Close releases idle connections.
func (a *BaseAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// resolve produces the concrete provider path for a request and the params
// not consumed by path placeholders.
func (a *BaseAdapter) resolve(req Request) (string, map[string]string, error) {
	tmpl := req.Endpoint
	if tmpl == "" {
		tmpl = a.paths[req.DataType]
	}
	if tmpl == "" {
		return "", nil, fmt.Errorf("%s: unsupported data type %q", a.name, req.DataType)
	}
	return expandPath(tmpl, req.Params)
}

// expandPath substitutes {param} placeholders and returns leftover params
// for the query string.
func expandPath(tmpl string, params map[string]string) (string, map[string]string, error) {
	leftover := make(map[string]string, len(params))
	for k, v := range params {
		leftover[k] = v
	}
	path := tmpl
	for k, v := range params {
		token := "{" + k + "}"
		if strings.Contains(path, token) {
			path = strings.ReplaceAll(path, token, url.PathEscape(v))
			delete(leftover, k)
		}
	}
	if i := strings.Index(path, "{"); i >= 0 {
		return "", nil, fmt.Errorf("missing parameter for placeholder %s", path[i:])
	}
	return path, leftover, nil
}

// withParam returns a copy of params with one extra pair set. Request params
// maps belong to the caller, so credential injection never mutates them in
// place.
func withParam(params map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}

// splitPair splits a normalized "BASE/QUOTE" trading symbol. A bare asset
// symbol gets the USDT quote, the venues' common denominator.
func splitPair(symbol string) (base, quote string) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return strings.ToUpper(strings.TrimSpace(symbol)), "USDT"
	}
	return strings.ToUpper(strings.TrimSpace(base)), strings.ToUpper(strings.TrimSpace(quote))
}

// do executes one rate-limited HTTP call and classifies every failure mode:
// local quota exhaustion, timeout, transport error, and upstream 4xx/5xx.
func (a *BaseAdapter) do(ctx context.Context, req Request, method string, body []byte) (*RawResult, error) {
	path, query, err := a.resolve(req)
	if err != nil {
		return nil, err
	}

	// Fail fast on an empty bucket so a fallback chain can move to the next
	// source instead of queuing behind this one.
	if !a.bucket.Allow() {
		return nil, newError(a.name, ErrRateLimit, "request quota exhausted")
	}

	base := a.baseURL
	if req.BaseURLOverride != "" {
		base = strings.TrimRight(req.BaseURLOverride, "/")
	}
	full := base + path
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		full += sep + q.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, newError(a.name, ErrTransport, "build request: %v", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if a.authorize != nil {
		a.authorize(httpReq)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &SourceError{Provider: a.name, Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newError(a.name, ErrTransport, "read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := string(respBody)
		if len(errBody) > maxErrorBodyLen {
			errBody = errBody[:maxErrorBodyLen] + "... (truncated)"
		}
		return nil, newError(a.name, classifyStatus(resp.StatusCode),
			"status %d: %s", resp.StatusCode, errBody)
	}

	return &RawResult{Body: respBody, Endpoint: path, Status: resp.StatusCode}, nil
}
