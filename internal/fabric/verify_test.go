package fabric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfab/market-gateway/internal/adapters"
)

func TestResolveVerified_BothSourcesServe(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 95000.00}`)
	beta := stubOK("beta", `{"price_usd": 95100.00}`)
	e := newTestEngine(t, nil, alpha, beta)

	primary, secondary, err := e.ResolveVerified(context.Background(), priceQuery("BTC", "alpha", "beta"))
	require.NoError(t, err)
	require.NotNil(t, secondary)

	assert.Equal(t, "alpha", primary.Meta.Provider)
	assert.Equal(t, "beta", secondary.Meta.Provider)
	assert.False(t, primary.Meta.Degraded)
	assert.False(t, secondary.Meta.Degraded)
	assert.Equal(t, 1, alpha.callCount())
	assert.Equal(t, 1, beta.callCount())
}

func TestResolveVerified_CachesEachSide(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 1.0}`)
	beta := stubOK("beta", `{"price_usd": 2.0}`)
	e := newTestEngine(t, nil, alpha, beta)
	q := priceQuery("ETH", "alpha", "beta")

	_, _, err := e.ResolveVerified(context.Background(), q)
	require.NoError(t, err)

	primary, secondary, err := e.ResolveVerified(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, secondary)

	assert.True(t, primary.FromCache)
	assert.True(t, secondary.FromCache)
	assert.Equal(t, 1, alpha.callCount())
	assert.Equal(t, 1, beta.callCount())
}

func TestResolveVerified_PrimaryCacheSharedWithResolve(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 3.0}`)
	beta := stubOK("beta", `{"price_usd": 4.0}`)
	e := newTestEngine(t, nil, alpha, beta)
	q := priceQuery("SOL", "alpha", "beta")

	_, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)

	primary, _, err := e.ResolveVerified(context.Background(), q)
	require.NoError(t, err)

	assert.True(t, primary.FromCache, "verification reuses the capability entry for the primary")
	assert.Equal(t, 1, alpha.callCount())
}

func TestResolveVerified_SecondaryFailureSkipsCrossCheck(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 5.0}`)
	beta := stubDown("beta", adapters.ErrRateLimit)
	e := newTestEngine(t, nil, alpha, beta)

	primary, secondary, err := e.ResolveVerified(context.Background(), priceQuery("BTC", "alpha", "beta"))
	require.NoError(t, err)

	assert.Nil(t, secondary)
	assert.Equal(t, "alpha", primary.Meta.Provider)
	assert.False(t, primary.Meta.Degraded)
}

func TestResolveVerified_PrimaryFailurePromotesSecondary(t *testing.T) {
	alpha := stubDown("alpha", adapters.ErrTimeout)
	beta := stubOK("beta", `{"price_usd": 6.0}`)
	e := newTestEngine(t, nil, alpha, beta)
	q := priceQuery("BTC", "alpha", "beta")

	primary, secondary, err := e.ResolveVerified(context.Background(), q)
	require.NoError(t, err)

	assert.Nil(t, secondary)
	assert.Equal(t, "beta", primary.Meta.Provider)
	assert.True(t, primary.Meta.Degraded)
	assert.Equal(t, "alpha", primary.Meta.FallbackUsed)

	// The promoted payload now backs the capability entry.
	res, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "beta", res.Meta.Provider)
	assert.Equal(t, 1, beta.callCount())
}

func TestResolveVerified_BothFailWalksRemainder(t *testing.T) {
	alpha := stubDown("alpha", adapters.ErrTimeout)
	beta := stubDown("beta", adapters.ErrTransport)
	gamma := stubOK("gamma", `{"price_usd": 8.0}`)
	e := newTestEngine(t, nil, alpha, beta, gamma)

	primary, secondary, err := e.ResolveVerified(context.Background(), priceQuery("BTC", "alpha", "beta", "gamma"))
	require.NoError(t, err)

	assert.Nil(t, secondary)
	assert.Equal(t, "gamma", primary.Meta.Provider)
	assert.True(t, primary.Meta.Degraded)
	assert.Equal(t, "alpha", primary.Meta.FallbackUsed)
}

func TestResolveVerified_AllFailReportsEverySource(t *testing.T) {
	alpha := stubDown("alpha", adapters.ErrTimeout)
	beta := stubDown("beta", adapters.ErrAuth)
	e := newTestEngine(t, nil, alpha, beta)

	_, _, err := e.ResolveVerified(context.Background(), priceQuery("BTC", "alpha", "beta"))

	var asf *AllSourcesFailedError
	require.ErrorAs(t, err, &asf)
	assert.Contains(t, asf.Errors["alpha"], "timeout")
	assert.Contains(t, asf.Errors["beta"], "auth")
}

func TestResolveVerified_SingleSourceFallsBackToResolve(t *testing.T) {
	alpha := stubOK("alpha", `{"price_usd": 10.0}`)
	e := newTestEngine(t, nil, alpha)

	primary, secondary, err := e.ResolveVerified(context.Background(), priceQuery("BTC", "alpha"))
	require.NoError(t, err)

	assert.Nil(t, secondary)
	assert.Equal(t, "alpha", primary.Meta.Provider)
}

func TestSourceKey_DistinctFromCapabilityKey(t *testing.T) {
	e := newTestEngine(t, nil)
	q := priceQuery("BTC", "alpha", "beta")

	base := e.Key(q)
	scoped := e.sourceKey(q, "beta")

	assert.NotEqual(t, base, scoped)
	assert.NotEqual(t, scoped, e.sourceKey(q, "gamma"))
	assert.Equal(t, scoped, e.sourceKey(q, "beta"), "scoped keys are deterministic")
}
