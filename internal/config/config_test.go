package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  port: 8080
  read_timeout: 15s
  write_timeout: 30s
logging:
  level: info
  format: console
  output: stdout
cache:
  backend: memory
  ttl:
    default: 60
    tools:
      crypto_overview:
        price: 30
        market: 120
conflict:
  default_threshold: 1.0
  thresholds:
    price_usd: 0.5
tools:
  crypto_overview:
    enabled: true
  sentiment_news:
    enabled: false
sources:
  binance:
    base_url: https://api.binance.com
    timeout_ms: 5000
    rate_limit_per_min: 1200
  coingecko:
    base_url: https://api.coingecko.com/api/v3
    timeout_ms: 8000
    rate_limit_per_min: 30
    requires_api_key: true
chains:
  crypto_overview:
    price: [binance, coingecko]
    market: [coingecko]
evidence:
  enabled: false
`

func mustLoad(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)
	return cfg
}

func TestLoadFromBytes_Valid(t *testing.T) {
	cfg := mustLoad(t)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.True(t, cfg.Sources["coingecko"].RequiresAPIKey)
	assert.Equal(t, []string{"binance", "coingecko"}, cfg.Chains["crypto_overview"]["price"])
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	yaml := `
server:
  port: ${MG_TEST_PORT:-9090}
  read_timeout: 15s
  write_timeout: 30s
logging:
  level: ${MG_TEST_LEVEL:-info}
  format: console
  output: stdout
cache:
  backend: memory
  ttl:
    default: 60
sources:
  binance:
    base_url: ${MG_TEST_BASE_URL:-https://api.binance.com}
    timeout_ms: 5000
    rate_limit_per_min: 1200
`

	t.Run("default_applies_when_unset", func(t *testing.T) {
		cfg, err := LoadFromBytes([]byte(yaml))
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "https://api.binance.com", cfg.Sources["binance"].BaseURL)
	})

	t.Run("env_wins_when_set", func(t *testing.T) {
		t.Setenv("MG_TEST_PORT", "7070")
		t.Setenv("MG_TEST_LEVEL", "debug")
		cfg, err := LoadFromBytes([]byte(yaml))
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/gateway.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load("")
	require.Error(t, err)
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing_port", func(c *Config) { c.Server.Port = 0 }, "server.port is required"},
		{"port_out_of_range", func(c *Config) { c.Server.Port = 70000 }, "invalid server.port"},
		{"missing_read_timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "server.read_timeout"},
		{"bad_log_level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging.level"},
		{"bad_log_format", func(c *Config) { c.Logging.Format = "xml" }, "invalid logging.format"},
		{"bad_cache_backend", func(c *Config) { c.Cache.Backend = "memcached" }, "invalid cache.backend"},
		{"redis_without_addr", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis.addr"},
		{"missing_default_ttl", func(c *Config) { c.Cache.TTL.Default = 0 }, "cache.ttl.default"},
		{"negative_capability_ttl", func(c *Config) { c.Cache.TTL.ByTool["crypto_overview"]["price"] = -1 }, "cache.ttl.tools.crypto_overview.price"},
		{"negative_threshold", func(c *Config) { c.Conflict.Thresholds["price_usd"] = -0.5 }, "conflict.thresholds.price_usd"},
		{"no_sources", func(c *Config) { c.Sources = nil }, "at least one source"},
		{"source_without_base_url", func(c *Config) {
			s := c.Sources["binance"]
			s.BaseURL = ""
			c.Sources["binance"] = s
		}, "sources.binance.base_url"},
		{"chain_references_unknown_source", func(c *Config) {
			c.Chains["crypto_overview"]["price"] = []string{"binance", "nasdaq"}
		}, `references undeclared source "nasdaq"`},
		{"empty_chain", func(c *Config) {
			c.Chains["crypto_overview"]["price"] = []string{}
		}, "must list at least one source"},
		{"evidence_without_sqlite_path", func(c *Config) {
			c.Evidence.Enabled = true
			c.Evidence.SQLitePath = ""
		}, "evidence.sqlite_path"},
		{"s3_sink_without_bucket", func(c *Config) {
			c.Evidence.Enabled = true
			c.Evidence.SQLitePath = "evidence.db"
			c.Evidence.S3.Enabled = true
			c.Evidence.S3.Region = "us-east-1"
		}, "evidence.s3.bucket"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := mustLoad(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTTLFor(t *testing.T) {
	cfg := mustLoad(t)

	assert.Equal(t, 30, cfg.TTLFor("crypto_overview", "price"))
	assert.Equal(t, 120, cfg.TTLFor("crypto_overview", "market"))
	assert.Equal(t, 60, cfg.TTLFor("crypto_overview", "supply"), "unlisted capability falls back to default")
	assert.Equal(t, 60, cfg.TTLFor("macro_indicators", "rates"), "unlisted tool falls back to default")
}

func TestThresholdFor(t *testing.T) {
	cfg := mustLoad(t)

	assert.Equal(t, 0.5, cfg.ThresholdFor("price_usd"))
	assert.Equal(t, 1.0, cfg.ThresholdFor("volume_24h"), "unlisted field falls back to default")
}

func TestChainFor(t *testing.T) {
	cfg := mustLoad(t)

	assert.Equal(t, []string{"binance", "coingecko"}, cfg.ChainFor("crypto_overview", "price"))
	assert.Nil(t, cfg.ChainFor("crypto_overview", "tvl"))
	assert.Nil(t, cfg.ChainFor("unknown_tool", "price"))
}

func TestToolEnabled(t *testing.T) {
	cfg := mustLoad(t)

	assert.True(t, cfg.ToolEnabled("crypto_overview"))
	assert.False(t, cfg.ToolEnabled("sentiment_news"))
	assert.False(t, cfg.ToolEnabled("never_configured"))
}

func TestSourceNames_Sorted(t *testing.T) {
	cfg := mustLoad(t)

	assert.Equal(t, []string{"binance", "coingecko"}, cfg.SourceNames())
}

func TestCredential(t *testing.T) {
	t.Setenv("COINMARKETCAP_API_KEY", "cmc-key")
	t.Setenv("GOPLUS_API_KEY", "gp-key")
	t.Setenv("GOPLUS_API_SECRET", "gp-secret")

	key, secret := Credential("coinmarketcap")
	assert.Equal(t, "cmc-key", key)
	assert.Empty(t, secret)

	key, secret = Credential("goplus")
	assert.Equal(t, "gp-key", key)
	assert.Equal(t, "gp-secret", secret)

	key, secret = Credential("alternative-me")
	assert.Empty(t, key, "dashes fold to underscores and unset vars stay empty")
	assert.Empty(t, secret)
}
