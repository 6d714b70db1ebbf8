// Package config loads and validates the gateway configuration.
//
// DESIGN: All configuration MUST come from YAML files. No defaults.
// This keeps deployments explicit and auditable. Credentials are the one
// exception: they never live in YAML, only in <PROVIDER>_API_KEY /
// <PROVIDER>_API_SECRET environment variables.
//
// FILES:
//   - config.go:      Root Config struct, Load(), Validate()
//   - lookups.go:     Chain / TTL / threshold / tool-enablement accessors
//   - credentials.go: Environment credential resolution
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the market gateway.
// All fields are required - no defaults are applied.
type Config struct {
	Server   ServerConfig                   `yaml:"server"`   // HTTP server settings
	Logging  LoggingConfig                  `yaml:"logging"`  // Operator logging
	Cache    CacheConfig                    `yaml:"cache"`    // Cache backend and TTL policy
	Conflict ConflictConfig                 `yaml:"conflict"` // Cross-check thresholds
	Tools    map[string]ToolConfig          `yaml:"tools"`    // Per-tool switches
	Sources  map[string]SourceConfig        `yaml:"sources"`  // Upstream source descriptors
	Chains   map[string]map[string][]string `yaml:"chains"`   // tool -> capability -> ordered sources
	Evidence EvidenceConfig                 `yaml:"evidence"` // Evidence sidecar settings
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`          // Bind address (empty binds all)
	Port         int           `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Max time to read request
	WriteTimeout time.Duration `yaml:"write_timeout"` // Max time to write response
}

// LoggingConfig contains operator logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console, or auto (console on a TTY)
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// CacheConfig selects the cache backend and holds the TTL policy table.
type CacheConfig struct {
	Backend string      `yaml:"backend"` // memory, redis
	Redis   RedisConfig `yaml:"redis"`   // Redis settings (backend: redis)
	TTL     TTLConfig   `yaml:"ttl"`     // Per-capability TTL policy
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TTLConfig is the capability-indexed TTL policy, in seconds. Upstream
// cache headers are never consulted.
type TTLConfig struct {
	Default int                       `yaml:"default"` // Fallback TTL seconds
	ByTool  map[string]map[string]int `yaml:"tools"`   // tool -> capability -> seconds
}

// ConflictConfig holds cross-check divergence tolerances, in percent.
type ConflictConfig struct {
	DefaultThreshold float64            `yaml:"default_threshold"` // Applied when no field entry exists
	Thresholds       map[string]float64 `yaml:"thresholds"`        // field -> percent
}

// ToolConfig is the per-tool switch.
type ToolConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SourceConfig describes one upstream source. Chain position, not this
// struct, decides priority.
type SourceConfig struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutMS       int    `yaml:"timeout_ms"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	RequiresAPIKey  bool   `yaml:"requires_api_key"`
}

// EvidenceConfig contains evidence sidecar settings.
type EvidenceConfig struct {
	Enabled      bool     `yaml:"enabled"`
	SQLitePath   string   `yaml:"sqlite_path"`
	FreshnessSLA int      `yaml:"freshness_sla_seconds"` // Watermark age bound
	S3           S3Config `yaml:"s3"`
}

// S3Config contains the optional S3 bundle sink settings.
type S3Config struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Prefix  string `yaml:"prefix"`
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	// Pattern matches ${VAR:-default} or ${VAR}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	case "":
		return fmt.Errorf("logging.level is required")
	default:
		return fmt.Errorf("invalid logging.level: %q (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "auto":
	case "":
		return fmt.Errorf("logging.format is required")
	default:
		return fmt.Errorf("invalid logging.format: %q (must be json, console or auto)", c.Logging.Format)
	}
	if c.Logging.Output == "" {
		return fmt.Errorf("logging.output is required")
	}

	// Cache validation
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	case "":
		return fmt.Errorf("cache.backend is required")
	default:
		return fmt.Errorf("invalid cache.backend: %q (must be memory or redis)", c.Cache.Backend)
	}
	if c.Cache.TTL.Default <= 0 {
		return fmt.Errorf("cache.ttl.default is required and must be positive")
	}
	for tool, caps := range c.Cache.TTL.ByTool {
		for capability, ttl := range caps {
			if ttl <= 0 {
				return fmt.Errorf("cache.ttl.tools.%s.%s must be positive, got %d", tool, capability, ttl)
			}
		}
	}

	// Conflict validation
	if c.Conflict.DefaultThreshold < 0 {
		return fmt.Errorf("conflict.default_threshold must not be negative")
	}
	for field, threshold := range c.Conflict.Thresholds {
		if threshold < 0 {
			return fmt.Errorf("conflict.thresholds.%s must not be negative", field)
		}
	}

	// Source validation
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for name, src := range c.Sources {
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required", name)
		}
		if src.TimeoutMS <= 0 {
			return fmt.Errorf("sources.%s.timeout_ms is required and must be positive", name)
		}
		if src.RateLimitPerMin <= 0 {
			return fmt.Errorf("sources.%s.rate_limit_per_min is required and must be positive", name)
		}
	}

	// Chain validation: every referenced source must be declared.
	for tool, caps := range c.Chains {
		for capability, sources := range caps {
			if len(sources) == 0 {
				return fmt.Errorf("chains.%s.%s must list at least one source", tool, capability)
			}
			for _, name := range sources {
				if _, ok := c.Sources[name]; !ok {
					return fmt.Errorf("chains.%s.%s references undeclared source %q", tool, capability, name)
				}
			}
		}
	}

	// Evidence validation
	if c.Evidence.Enabled {
		if c.Evidence.SQLitePath == "" {
			return fmt.Errorf("evidence.sqlite_path is required when evidence is enabled")
		}
		if c.Evidence.S3.Enabled {
			if c.Evidence.S3.Bucket == "" {
				return fmt.Errorf("evidence.s3.bucket is required when the s3 sink is enabled")
			}
			if c.Evidence.S3.Region == "" {
				return fmt.Errorf("evidence.s3.region is required when the s3 sink is enabled")
			}
		}
	}

	return nil
}
