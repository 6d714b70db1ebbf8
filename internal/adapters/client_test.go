package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfab/market-gateway/internal/provenance"
)

func testDescriptor(baseURL string) Descriptor {
	return Descriptor{
		Name:            "test",
		BaseURL:         baseURL,
		TimeoutMS:       2000,
		RateLimitPerMin: 600,
	}
}

// TestBaseAdapter_PathResolution verifies placeholder expansion, query
// string assembly and the error cases for unknown data types and missing
// params.
func TestBaseAdapter_PathResolution(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.URL.String())
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	base := newBase("test", testDescriptor(server.URL), map[string]string{
		"basic":  "/api/v3/coins/{id}",
		"supply": "/api?module=stats&action=tokensupply&contractaddress={address}",
	}, "", "")
	ctx := context.Background()

	t.Run("placeholder_and_query", func(t *testing.T) {
		_, err := base.FetchRaw(ctx, Request{
			DataType: "basic",
			Params:   map[string]string{"id": "bitcoin", "localization": "false"},
		})
		require.NoError(t, err)
		assert.Equal(t, "/api/v3/coins/bitcoin?localization=false", got.Load().(string))
	})

	t.Run("template_with_inline_query", func(t *testing.T) {
		_, err := base.FetchRaw(ctx, Request{
			DataType: "supply",
			Params:   map[string]string{"address": "0xdac17f958d2ee523a2206206994597c13d831ec7", "apikey": "k"},
		})
		require.NoError(t, err)
		u := got.Load().(string)
		assert.Contains(t, u, "module=stats")
		assert.Contains(t, u, "contractaddress=0xdac17f958d2ee523a2206206994597c13d831ec7")
		assert.Contains(t, u, "apikey=k")
		assert.Equal(t, 1, strings.Count(u, "?"))
	})

	t.Run("endpoint_override", func(t *testing.T) {
		_, err := base.FetchRaw(ctx, Request{DataType: "basic", Endpoint: "/api/v3/ping"})
		require.NoError(t, err)
		assert.Equal(t, "/api/v3/ping", got.Load().(string))
	})

	t.Run("unsupported_data_type", func(t *testing.T) {
		_, err := base.FetchRaw(ctx, Request{DataType: "orderbook"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported data type")
	})

	t.Run("missing_placeholder_param", func(t *testing.T) {
		_, err := base.FetchRaw(ctx, Request{DataType: "basic"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing parameter")
	})
}

// TestBaseAdapter_RateLimitFailFast verifies an exhausted bucket rejects
// immediately instead of queuing, and that the rejected call never reaches
// upstream.
func TestBaseAdapter_RateLimitFailFast(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	d := testDescriptor(server.URL)
	d.RateLimitPerMin = 1
	base := newBase("test", d, map[string]string{"ticker": "/ticker"}, "", "")

	_, err := base.FetchRaw(context.Background(), Request{DataType: "ticker"})
	require.NoError(t, err)

	start := time.Now()
	_, err = base.FetchRaw(context.Background(), Request{DataType: "ticker"})
	require.Error(t, err)
	assert.Equal(t, ErrRateLimit, KindOf(err))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

// TestBaseAdapter_StatusClassification verifies upstream HTTP statuses map
// to the documented error kinds.
func TestBaseAdapter_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusInternalServerError, ErrTransport},
		{http.StatusBadGateway, ErrTransport},
	}
	for _, tc := range cases {
		status := tc.status
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream failure", status)
		}))
		base := newBase("test", testDescriptor(server.URL), map[string]string{"ticker": "/ticker"}, "", "")

		_, err := base.FetchRaw(context.Background(), Request{DataType: "ticker"})
		server.Close()
		require.Error(t, err, "status %d", status)
		assert.Equal(t, tc.kind, KindOf(err), "status %d", status)
	}
}

// TestBaseAdapter_Timeout verifies a slow upstream hits the per-call
// deadline and reports kind timeout.
func TestBaseAdapter_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	d := testDescriptor(server.URL)
	d.TimeoutMS = 50
	base := newBase("test", d, map[string]string{"ticker": "/ticker"}, "", "")

	_, err := base.FetchRaw(context.Background(), Request{DataType: "ticker"})
	require.Error(t, err)
	assert.Equal(t, ErrTimeout, KindOf(err))
}

// TestBaseAdapter_TruncatesLongErrorBodies verifies provider error pages are
// clipped before they reach error messages.
func TestBaseAdapter_TruncatesLongErrorBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	base := newBase("test", testDescriptor(server.URL), map[string]string{"ticker": "/ticker"}, "", "")

	_, err := base.FetchRaw(context.Background(), Request{DataType: "ticker"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(truncated)")
	assert.Less(t, len(err.Error()), 700)
}

// TestBaseAdapter_Headers verifies the authorize hook adds provider auth
// and request headers can still override defaults.
func TestBaseAdapter_Headers(t *testing.T) {
	var accept, auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	base := newBase("test", testDescriptor(server.URL), map[string]string{"ticker": "/ticker"}, "", "")
	base.authorize = func(req *http.Request) { req.Header.Set("Authorization", "Apikey k") }

	_, err := base.FetchRaw(context.Background(), Request{
		DataType: "ticker",
		Headers:  map[string]string{"Accept": "application/vnd.github+json"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.github+json", accept)
	assert.Equal(t, "Apikey k", auth)
}

// TestWithParam verifies credential injection copies the params map instead
// of mutating the caller's.
func TestWithParam(t *testing.T) {
	orig := map[string]string{"symbol": "BTC"}
	out := withParam(orig, "apikey", "k")
	assert.Equal(t, map[string]string{"symbol": "BTC", "apikey": "k"}, out)
	assert.Equal(t, map[string]string{"symbol": "BTC"}, orig)
}

// TestFetch_StampsProvenance verifies the composed fetch path returns the
// normalized payload together with exactly one provenance record.
func TestFetch_StampsProvenance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"95000.10","bidPrice":"95000.00","askPrice":"95000.20","quoteVolume":"12345678.9","priceChangePercent":"1.25"}`))
	}))
	defer server.Close()

	a, err := newBinance(testDescriptor(server.URL), "", "")
	require.NoError(t, err)

	payload, meta, err := Fetch(context.Background(), a, Request{
		DataType:   "ticker",
		Params:     map[string]string{"symbol": "BTCUSDT"},
		TTLSeconds: 30,
	})
	require.NoError(t, err)

	var tick Ticker
	require.NoError(t, json.Unmarshal(payload, &tick))
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, 95000.10, tick.Last)

	assert.Equal(t, "binance", meta.Provider)
	assert.Equal(t, "/api/v3/ticker/24hr", meta.Endpoint)
	assert.Equal(t, provenance.Version, meta.Version)
	assert.Equal(t, 30, meta.TTLSeconds)
	assert.False(t, meta.AsOf().IsZero())
	assert.GreaterOrEqual(t, meta.ResponseTimeMS, int64(0))
}

// TestFetch_BadPayloadReportsDecode verifies transform failures surface as
// decode errors attributed to the source.
func TestFetch_BadPayloadReportsDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	a, err := newBinance(testDescriptor(server.URL), "", "")
	require.NoError(t, err)

	_, _, err = Fetch(context.Background(), a, Request{
		DataType: "ticker",
		Params:   map[string]string{"symbol": "BTCUSDT"},
	})
	require.Error(t, err)
	assert.Equal(t, ErrDecode, KindOf(err))

	var se *SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "binance", se.Provider)
}
