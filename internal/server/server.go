// Package server is the REST transport: a chi router over the tool runner,
// with the registry, argument validator, metrics and cache surfaced as
// endpoints.
//
// DESIGN: The server owns no domain logic. Handlers translate HTTP to
// runner/registry calls and map the error taxonomy onto status codes:
// validation → 422, unknown tool → 404, disabled tool → 503, panic → 500.
// Capability failures are NOT transport errors; the envelope carries them as
// warnings and the response stays 200.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quantfab/market-gateway/internal/fabric"
	"github.com/quantfab/market-gateway/internal/monitoring"
	"github.com/quantfab/market-gateway/internal/schema"
	"github.com/quantfab/market-gateway/internal/tools"
)

// Config carries the listener address and the identity reported by the
// banner and health endpoints. Zero timeouts fall back to the defaults
// below.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Service      string
	Version      string
}

// Server is the REST transport.
type Server struct {
	cfg       Config
	registry  *tools.Registry
	runner    *tools.Runner
	validator *schema.Validator
	engine    *fabric.Engine
	metrics   *monitoring.Metrics
	gatherer  prometheus.Gatherer

	http *http.Server
}

// New wires the server. gatherer backs /metrics; pass the registry the
// metrics collector was registered on.
func New(cfg Config, reg *tools.Registry, runner *tools.Runner, v *schema.Validator, e *fabric.Engine, m *monitoring.Metrics, g prometheus.Gatherer) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	s := &Server{
		cfg:       cfg,
		registry:  reg,
		runner:    runner,
		validator: v,
		engine:    e,
		metrics:   m,
		gatherer:  g,
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler builds the full route tree. Exposed so transport tests can drive
// it through httptest without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLog)
	r.Use(s.recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerRequestID},
		MaxAge:         300,
	}))

	r.Get("/", s.handleBanner)
	r.Get("/health", s.handleHealth)
	r.Get("/tools", s.handleToolList)
	r.Get("/tools/registry", s.handleToolRegistry)
	r.Get("/tools/{name}", s.handleToolCard)
	r.Post("/tools/{name}", s.handleToolCall)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/stats", s.handleStats)
	r.Post("/admin/cache/invalidate", s.handleInvalidate)

	return r
}

// Start blocks on the listener until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("REST transport listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
