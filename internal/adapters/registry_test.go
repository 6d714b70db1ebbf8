package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistryBuild verifies construction from descriptors: unknown sources
// fail fast, key-gated sources without credentials are skipped, the rest
// register under their source names.
func TestRegistryBuild(t *testing.T) {
	t.Run("unknown_source", func(t *testing.T) {
		_, err := Build(map[string]Descriptor{
			"nasdaq": {BaseURL: "https://example.com"},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown source")
	})

	t.Run("skips_key_gated_source_without_credentials", func(t *testing.T) {
		r, err := Build(map[string]Descriptor{
			"binance":       {BaseURL: "https://api.binance.com"},
			"coinmarketcap": {BaseURL: "https://pro-api.coinmarketcap.com", RequiresAPIKey: true},
		}, func(name string) (string, string) { return "", "" })
		require.NoError(t, err)
		assert.Equal(t, []string{"binance"}, r.Names())
		_, ok := r.Get("coinmarketcap")
		assert.False(t, ok)
	})

	t.Run("registers_all_configured", func(t *testing.T) {
		r, err := Build(map[string]Descriptor{
			"binance":   {BaseURL: "https://api.binance.com"},
			"coingecko": {BaseURL: "https://api.coingecko.com"},
			"etherscan": {BaseURL: "https://api.etherscan.io", RequiresAPIKey: true},
		}, func(name string) (string, string) { return "key-" + name, "" })
		require.NoError(t, err)
		assert.Equal(t, []string{"binance", "coingecko", "etherscan"}, r.Names())

		a, ok := r.Get("etherscan")
		require.True(t, ok)
		assert.Equal(t, "etherscan", a.Name())
		require.NoError(t, r.CloseAll())
	})
}
