package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfab/market-gateway/internal/adapters"
	"github.com/quantfab/market-gateway/internal/cache"
	"github.com/quantfab/market-gateway/internal/config"
	"github.com/quantfab/market-gateway/internal/evidence"
	"github.com/quantfab/market-gateway/internal/fabric"
	"github.com/quantfab/market-gateway/internal/monitoring"
	"github.com/quantfab/market-gateway/internal/schema"
	"github.com/quantfab/market-gateway/internal/server"
	"github.com/quantfab/market-gateway/internal/stdio"
	"github.com/quantfab/market-gateway/internal/tools"
)

// runServe starts the gateway on the selected transport.
func runServe(args []string) {
	// Load .env files from standard locations
	loadEnvFiles()

	// Parse flags
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	transport := fs.String("transport", "http", "transport to serve: http or stdio")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	_ = fs.Parse(args) // ExitOnError handles errors

	stdioMode := *transport == "stdio"

	// In stdio mode stdout carries the protocol stream: no banner, and all
	// logging moves to stderr.
	if !*noBanner && !stdioMode {
		printBanner()
	}

	setupLogging(*debug, stdioMode)

	// Resolve config from flag, env, filesystem or the embedded default
	configData, configSource, err := resolveConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("no config file found, specify --config path")
	}

	cfg, err := config.LoadFromBytes(configData)
	if err != nil {
		log.Fatal().Err(err).Str("config", configSource).Msg("failed to load configuration")
	}

	// Replace the bootstrap logger with the configured one. Flags win.
	applyLogging(cfg.Logging, *debug, stdioMode)

	log.Info().
		Str("version", Version).
		Str("config", configSource).
		Str("transport", *transport).
		Msg("Market Gateway starting")

	// Upstream adapters from the configured source descriptors. Sources that
	// need an API key but have none are skipped inside Build, so their
	// chains fall through to the next entry.
	sources, err := adapters.Build(sourceDescriptors(cfg), config.Credential)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build source adapters")
	}

	store, err := buildCache(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("failed to open cache backend")
	}

	promReg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(promReg)
	engine := fabric.NewEngine(sources, store, metrics)

	collector, err := evidence.New(context.Background(), cfg.Evidence)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open evidence sidecar")
	}
	collector.Start()

	registry := tools.NewRegistry(cfg)
	validator, err := schema.NewValidator(registry.Schemas())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile tool input schemas")
	}
	runner := tools.NewRunner(engine, cfg, metrics, collector)

	log.Info().
		Int("tools", registry.Count()).
		Strs("sources", sources.Names()).
		Str("cache", cfg.Cache.Backend).
		Bool("evidence", cfg.Evidence.Enabled).
		Msg("configuration loaded")

	switch *transport {
	case "stdio":
		serveStdio(registry, runner, validator)
	case "http":
		serveHTTP(cfg, registry, runner, validator, engine, metrics, promReg)
	default:
		log.Fatal().Str("transport", *transport).Msg("unknown transport (must be http or stdio)")
	}

	// Orderly teardown once the transport returns
	collector.Stop()
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("cache close failed")
	}
	if err := sources.CloseAll(); err != nil {
		log.Warn().Err(err).Msg("adapter close failed")
	}

	log.Info().Msg("Market Gateway stopped")
}

// serveHTTP runs the REST transport until SIGINT/SIGTERM.
func serveHTTP(cfg *config.Config, registry *tools.Registry, runner *tools.Runner, validator *schema.Validator, engine *fabric.Engine, metrics *monitoring.Metrics, promReg *prometheus.Registry) {
	srv := server.New(server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Service:      serviceName,
		Version:      Version,
	}, registry, runner, validator, engine, metrics, promReg)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// serveStdio runs the line-delimited JSON-RPC transport on stdin/stdout
// until the host closes stdin or a signal arrives.
func serveStdio(registry *tools.Registry, runner *tools.Runner, validator *schema.Validator) {
	t := stdio.New(registry, runner, validator, serviceName, Version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := t.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("stdio transport error")
	}
}

// resolveConfig resolves the serve configuration.
// Checks: user flag -> MARKET_GATEWAY_CONFIG env -> filesystem locations ->
// embedded default. Returns raw bytes and a source description.
func resolveConfig(userConfig string) ([]byte, string, error) {
	// If the user specified a config path, read it directly
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	if envPath := os.Getenv("MARKET_GATEWAY_CONFIG"); envPath != "" {
		data, err := os.ReadFile(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("MARKET_GATEWAY_CONFIG points at an unreadable file: %s", envPath)
		}
		return data, envPath, nil
	}

	// Search filesystem in order of preference
	searchPaths := []string{}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", "market-gateway", "gateway.yaml"))
	}
	searchPaths = append(searchPaths, filepath.Join("configs", "gateway.yaml"))

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	// Fall back to the embedded config
	if data, err := getEmbeddedConfig("gateway"); err == nil {
		return data, "(embedded) gateway.yaml", nil
	}

	return nil, "", fmt.Errorf("no config file found")
}

// sourceDescriptors maps configured sources onto adapter descriptors. Chain
// position, not the descriptor, carries priority.
func sourceDescriptors(cfg *config.Config) map[string]adapters.Descriptor {
	out := make(map[string]adapters.Descriptor, len(cfg.Sources))
	for name, src := range cfg.Sources {
		out[name] = adapters.Descriptor{
			Name:            name,
			BaseURL:         src.BaseURL,
			TimeoutMS:       src.TimeoutMS,
			RateLimitPerMin: src.RateLimitPerMin,
			RequiresAPIKey:  src.RequiresAPIKey,
		}
	}
	return out
}

// buildCache selects the cache backend from config. Validation already
// constrained the backend name.
func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return cache.NewMemory(), nil
}

// setupLogging installs a console logger before the config is known.
func setupLogging(debug, stdioMode bool) {
	out := os.Stdout
	if stdioMode {
		out = os.Stderr
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	})

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// applyLogging replaces the bootstrap logger with the configured one. The
// debug flag overrides the configured level; stdio mode redirects stdout
// logging to stderr to keep the protocol stream clean.
func applyLogging(lc config.LoggingConfig, debug, stdioMode bool) {
	level := lc.Level
	if debug {
		level = "debug"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	output := lc.Output
	if stdioMode && (output == "" || output == "stdout") {
		output = "stderr"
	}

	monitoring.Global(monitoring.LoggerConfig{
		Level:  level,
		Format: lc.Format,
		Output: output,
	})
}
