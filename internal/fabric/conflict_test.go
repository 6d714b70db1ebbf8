package fabric

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/quantfab/market-gateway/internal/provenance"
)

func sourced(provider, body, asOf string) *Result {
	return &Result{
		Payload: json.RawMessage(body),
		Meta:    provenance.SourceMeta{Provider: provider, AsOfUTC: asOf},
	}
}

func TestCrossCheck_WithinThresholdAverages(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"price_usd": 95000.0, "volume_24h": 1.0}`, "2026-08-24T10:00:00Z")
	secondary := sourced("coingecko", `{"price_usd": 95100.0}`, "2026-08-24T10:00:01Z")

	payload, conflict := e.CrossCheck(primary, secondary, CheckPolicy{Field: "price_usd", ThresholdPercent: 1.0})

	require.NotNil(t, conflict)
	assert.Equal(t, "price_usd", conflict.Field)
	assert.Equal(t, provenance.ResolutionAverage, conflict.Resolution)
	assert.Equal(t, 95050.0, conflict.FinalValue)
	require.NotNil(t, conflict.DiffAbsolute)
	assert.InDelta(t, 100.0, *conflict.DiffAbsolute, 1e-9)
	require.NotNil(t, conflict.DiffPercent)
	assert.InDelta(t, 100.0/95000.0*100, *conflict.DiffPercent, 1e-9)
	assert.Equal(t, map[string]any{"binance": 95000.0, "coingecko": 95100.0}, conflict.Values)

	assert.InDelta(t, 95050.0, gjson.GetBytes(payload, "price_usd").Float(), 1e-9)
	assert.InDelta(t, 1.0, gjson.GetBytes(payload, "volume_24h").Float(), 1e-9, "untouched fields survive the mutation")
}

func TestCrossCheck_AboveThresholdKeepsPrimary(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"price_usd": 100.0}`, "2026-08-24T10:00:00Z")
	secondary := sourced("kraken", `{"price_usd": 110.0}`, "2026-08-24T10:00:00Z")

	payload, conflict := e.CrossCheck(primary, secondary, CheckPolicy{Field: "price_usd", ThresholdPercent: 5.0})

	require.NotNil(t, conflict)
	assert.Equal(t, provenance.ResolutionPrimarySource, conflict.Resolution)
	assert.Equal(t, 100.0, conflict.FinalValue)
	assert.InDelta(t, 100.0, gjson.GetBytes(payload, "price_usd").Float(), 1e-9, "payload stays untouched above the threshold")
}

func TestCrossCheck_ExactThresholdStillAverages(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"price_usd": 100.0}`, "2026-08-24T10:00:00Z")
	secondary := sourced("kraken", `{"price_usd": 101.0}`, "2026-08-24T10:00:00Z")

	payload, conflict := e.CrossCheck(primary, secondary, CheckPolicy{Field: "price_usd", ThresholdPercent: 1.0})

	require.NotNil(t, conflict)
	assert.Equal(t, provenance.ResolutionAverage, conflict.Resolution)
	assert.InDelta(t, 100.5, gjson.GetBytes(payload, "price_usd").Float(), 1e-9)
}

func TestCrossCheck_EqualValuesRecordNothing(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"price_usd": 100.0}`, "2026-08-24T10:00:00Z")
	secondary := sourced("kraken", `{"price_usd": 100.0}`, "2026-08-24T10:00:00Z")

	payload, conflict := e.CrossCheck(primary, secondary, CheckPolicy{Field: "price_usd", ThresholdPercent: 1.0})

	assert.Nil(t, conflict)
	assert.Equal(t, string(primary.Payload), string(payload))
}

func TestCrossCheck_MissingFieldAbortsSilently(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"price_usd": 100.0}`, "2026-08-24T10:00:00Z")
	secondary := sourced("kraken", `{"volume_24h": 5.0}`, "2026-08-24T10:00:00Z")

	payload, conflict := e.CrossCheck(primary, secondary, CheckPolicy{Field: "price_usd", ThresholdPercent: 1.0})

	assert.Nil(t, conflict)
	assert.Equal(t, string(primary.Payload), string(payload))
}

func TestCrossCheck_NonNumericFieldAbortsSilently(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"symbol": "BTC"}`, "2026-08-24T10:00:00Z")
	secondary := sourced("kraken", `{"symbol": "XBT"}`, "2026-08-24T10:00:00Z")

	_, conflict := e.CrossCheck(primary, secondary, CheckPolicy{Field: "symbol", ThresholdPercent: 1.0})

	assert.Nil(t, conflict)
}

func TestCrossCheck_ZeroPrimaryYieldsToPrimary(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"funding_rate": 0}`, "2026-08-24T10:00:00Z")
	secondary := sourced("kraken", `{"funding_rate": 0.01}`, "2026-08-24T10:00:00Z")

	payload, conflict := e.CrossCheck(primary, secondary, CheckPolicy{Field: "funding_rate", ThresholdPercent: 1.0})

	require.NotNil(t, conflict)
	assert.Equal(t, provenance.ResolutionPrimarySource, conflict.Resolution)
	assert.Nil(t, conflict.DiffPercent, "percent divergence is undefined against a zero primary")
	assert.Equal(t, 0.0, conflict.FinalValue)
	assert.Equal(t, 0.0, gjson.GetBytes(payload, "funding_rate").Float())
}

func TestCrossCheck_ManualRecordsWithoutMutating(t *testing.T) {
	e := newTestEngine(t, nil)
	primary := sourced("binance", `{"open_interest": 1000.0}`, "2026-08-24T10:00:00Z")
	secondary := sourced("okx", `{"open_interest": 2000.0}`, "2026-08-24T10:00:00Z")

	payload, conflict := e.CrossCheck(primary, secondary, CheckPolicy{
		Field:    "open_interest",
		Strategy: provenance.ResolutionManual,
	})

	require.NotNil(t, conflict)
	assert.Equal(t, provenance.ResolutionManual, conflict.Resolution)
	assert.Equal(t, 1000.0, conflict.FinalValue)
	assert.Equal(t, string(primary.Payload), string(payload))
}

func TestCrossCheck_LatestTimestampPicksNewerSide(t *testing.T) {
	e := newTestEngine(t, nil)
	policy := CheckPolicy{Field: "price_usd", Strategy: provenance.ResolutionLatestTimestamp}

	t.Run("secondary_newer", func(t *testing.T) {
		primary := sourced("binance", `{"price_usd": 100.0}`, "2026-08-24T10:00:00Z")
		secondary := sourced("kraken", `{"price_usd": 105.0}`, "2026-08-24T10:00:30Z")

		payload, conflict := e.CrossCheck(primary, secondary, policy)

		require.NotNil(t, conflict)
		assert.Equal(t, provenance.ResolutionLatestTimestamp, conflict.Resolution)
		assert.Equal(t, 105.0, conflict.FinalValue)
		assert.InDelta(t, 105.0, gjson.GetBytes(payload, "price_usd").Float(), 1e-9)
	})

	t.Run("primary_newer_or_tied", func(t *testing.T) {
		primary := sourced("binance", `{"price_usd": 100.0}`, "2026-08-24T10:00:30Z")
		secondary := sourced("kraken", `{"price_usd": 105.0}`, "2026-08-24T10:00:30Z")

		payload, conflict := e.CrossCheck(primary, secondary, policy)

		require.NotNil(t, conflict)
		assert.Equal(t, 100.0, conflict.FinalValue)
		assert.InDelta(t, 100.0, gjson.GetBytes(payload, "price_usd").Float(), 1e-9)
	})
}
