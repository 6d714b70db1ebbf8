package fabric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/quantfab/market-gateway/internal/adapters"
	"github.com/quantfab/market-gateway/internal/cache"
	"github.com/quantfab/market-gateway/internal/monitoring"
)

// stubAdapter is a scripted source. Each FetchRaw counts, waits for delay
// and returns either the configured error or the configured body.
type stubAdapter struct {
	name  string
	body  []byte
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) FetchRaw(ctx context.Context, req adapters.Request) (*adapters.RawResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &adapters.RawResult{Body: s.body, Endpoint: "/stub/" + req.DataType, Status: 200}, nil
}

func (s *stubAdapter) Transform(raw []byte, _ string) (any, error) {
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *stubAdapter) Close() error { return nil }

func (s *stubAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func stubOK(name, body string) *stubAdapter {
	return &stubAdapter{name: name, body: []byte(body)}
}

func stubDown(name string, kind adapters.ErrorKind) *stubAdapter {
	return &stubAdapter{name: name, err: &adapters.SourceError{
		Provider: name,
		Kind:     kind,
		Err:      errors.New("stubbed failure"),
	}}
}

func newTestEngine(t *testing.T, m *monitoring.Metrics, stubs ...*stubAdapter) *Engine {
	t.Helper()
	reg := adapters.NewRegistry()
	for _, s := range stubs {
		reg.Register(s)
	}
	c := cache.NewMemory()
	t.Cleanup(func() { _ = c.Close() })
	return NewEngine(reg, c, m)
}

func chain(names ...string) []adapters.Descriptor {
	out := make([]adapters.Descriptor, 0, len(names))
	for i, name := range names {
		out = append(out, adapters.Descriptor{Name: name, Priority: i + 1})
	}
	return out
}

func priceQuery(symbol string, sources ...string) Query {
	return Query{
		Tool:       "crypto_overview",
		Capability: "price",
		Params:     map[string]string{"symbol": symbol},
		Chain:      chain(sources...),
		TTLSeconds: 30,
	}
}

func TestResolve_PrimaryServes(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 95000.10}`)
	beta := stubOK("beta", `{"price_usd": 95100.00}`)
	e := newTestEngine(t, nil, alpha, beta)

	res, err := e.Resolve(context.Background(), priceQuery("BTC", "alpha", "beta"))
	require.NoError(t, err)

	assert.Equal(t, "alpha", res.Meta.Provider)
	assert.False(t, res.Meta.Degraded)
	assert.Empty(t, res.Meta.FallbackUsed)
	assert.False(t, res.FromCache)
	assert.InDelta(t, 95000.10, gjson.GetBytes(res.Payload, "price_usd").Float(), 1e-9)
	assert.Equal(t, 0, beta.callCount(), "lower-priority source must not be contacted")
}

func TestResolve_CacheHitSkipsUpstream(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 42.0}`)
	e := newTestEngine(t, nil, alpha)
	q := priceQuery("SOL", "alpha")

	first, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, 1, alpha.callCount(), "cache hit must not touch upstream")
	assert.Equal(t, first.Meta, second.Meta, "cached provenance is restored verbatim")
	assert.JSONEq(t, string(first.Payload), string(second.Payload))
}

func TestResolve_FallbackOnPrimaryFailure(t *testing.T) {
	alpha := stubDown("alpha", adapters.ErrTimeout)
	beta := stubOK("beta", `{"price_usd": 95100.00}`)
	e := newTestEngine(t, nil, alpha, beta)

	res, err := e.Resolve(context.Background(), priceQuery("BTC", "alpha", "beta"))
	require.NoError(t, err)

	assert.Equal(t, "beta", res.Meta.Provider)
	assert.True(t, res.Meta.Degraded)
	assert.Equal(t, "alpha", res.Meta.FallbackUsed, "fallback_used names the intended primary")
	assert.Equal(t, 1, alpha.callCount())
	assert.Equal(t, 1, beta.callCount())
}

func TestResolve_AllSourcesFailed(t *testing.T) {
	alpha := stubDown("alpha", adapters.ErrTimeout)
	beta := stubDown("beta", adapters.ErrRateLimit)
	e := newTestEngine(t, nil, alpha, beta)

	q := priceQuery("BTC", "alpha", "beta")
	q.Capability = "tvl"
	_, err := e.Resolve(context.Background(), q)

	var asf *AllSourcesFailedError
	require.ErrorAs(t, err, &asf)
	assert.Equal(t, "tvl", asf.Capability)
	assert.Contains(t, asf.Errors["alpha"], "timeout")
	assert.Contains(t, asf.Errors["beta"], "rate_limit")
	assert.True(t, len(asf.Warning()) > 0)
	assert.Contains(t, asf.Warning(), "tvl: all sources failed")
}

func TestResolve_EmptyChainAfterFiltering(t *testing.T) {
	e := newTestEngine(t, nil, stubOK("alpha", `{}`))

	// The chain names only sources the registry never held, as happens when
	// every configured source was skipped for missing credentials.
	_, err := e.Resolve(context.Background(), priceQuery("BTC", "ghost", "phantom"))

	var asf *AllSourcesFailedError
	require.ErrorAs(t, err, &asf)
	assert.Equal(t, map[string]string{"error": "no sources configured"}, asf.Errors)
}

func TestResolve_OpenCircuitIsFilteredOut(t *testing.T) {
	alpha := stubDown("alpha", adapters.ErrTransport)
	beta := stubOK("beta", `{"price_usd": 1.0}`)
	e := newTestEngine(t, nil, alpha, beta)

	// Distinct symbols defeat the cache so alpha accumulates consecutive
	// failures up to the breaker threshold.
	for i := 0; i < 3; i++ {
		res, err := e.Resolve(context.Background(), priceQuery(fmt.Sprintf("SYM%d", i), "alpha", "beta"))
		require.NoError(t, err)
		assert.True(t, res.Meta.Degraded)
	}
	require.Equal(t, 3, alpha.callCount())

	// With alpha's circuit open the filtered chain starts at beta, which is
	// now the primary rather than a fallback.
	res, err := e.Resolve(context.Background(), priceQuery("SYM9", "alpha", "beta"))
	require.NoError(t, err)
	assert.Equal(t, "beta", res.Meta.Provider)
	assert.False(t, res.Meta.Degraded)
	assert.Equal(t, 3, alpha.callCount(), "open circuit must not be probed by the chain walk")
}

func TestResolve_ConcurrentCallsShareOneFlight(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 7.0}`)
	alpha.delay = 50 * time.Millisecond
	e := newTestEngine(t, nil, alpha)
	q := priceQuery("ETH", "alpha")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Resolve(context.Background(), q)
			assert.NoError(t, err)
			assert.Equal(t, "alpha", res.Meta.Provider)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, alpha.callCount(), "identical concurrent queries collapse into one upstream call")
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 3.0}`)
	e := newTestEngine(t, nil, alpha)
	q := priceQuery("ADA", "alpha")

	_, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)

	n, err := e.Invalidate(context.Background(), "crypto_overview:price:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, alpha.callCount())
}

func TestResolve_ZeroTTLSkipsWriteThrough(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 5.0}`)
	e := newTestEngine(t, nil, alpha)
	q := priceQuery("DOT", "alpha")
	q.TTLSeconds = 0

	_, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)
	_, err = e.Resolve(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 2, alpha.callCount())
}

func TestResolve_MetricsAccounting(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	alpha := stubDown("alpha", adapters.ErrTimeout)
	beta := stubOK("beta", `{"price_usd": 9.0}`)
	e := newTestEngine(t, m, alpha, beta)
	q := priceQuery("BTC", "alpha", "beta")

	_, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)
	_, err = e.Resolve(context.Background(), q)
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats["cache_misses"])
	assert.Equal(t, int64(1), stats["cache_hits"])
	assert.Equal(t, int64(2), stats["upstream_calls"])
	assert.Equal(t, int64(1), stats["upstream_errors"])
	assert.Equal(t, int64(1), stats["fallbacks"])
}

func TestQuery_DataTypeDefaultsToCapability(t *testing.T) {
	q := Query{Capability: "holders"}
	assert.Equal(t, "holders", q.dataType())

	q.DataType = "supply"
	assert.Equal(t, "supply", q.dataType())
}
