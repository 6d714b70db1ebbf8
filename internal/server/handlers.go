package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/quantfab/market-gateway/internal/monitoring"
	"github.com/quantfab/market-gateway/internal/provenance"
	"github.com/quantfab/market-gateway/internal/schema"
)

// maxBodyBytes caps tool-call and admin request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

func writeDetail(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     s.cfg.Service,
		"version":     s.cfg.Version,
		"description": "Multi-source market data gateway with provenance-annotated envelopes.",
		"endpoints": map[string]string{
			"health":     "/health",
			"tools":      "/tools",
			"registry":   "/tools/registry",
			"call":       "POST /tools/{name}",
			"metrics":    "/metrics",
			"stats":      "/stats",
			"invalidate": "POST /admin/cache/invalidate",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"service":     s.cfg.Service,
		"version":     s.cfg.Version,
		"tools_count": s.registry.Count(),
	})
}

func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	type brief struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Endpoint    string `json:"endpoint"`
	}
	entries := s.registry.Entries()
	out := make([]brief, 0, len(entries))
	for _, e := range entries {
		out = append(out, brief{Name: e.Name, Description: e.Description, Endpoint: e.Endpoint})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out, "count": len(out)})
}

func (s *Server) handleToolRegistry(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.Entries()
	writeJSON(w, http.StatusOK, map[string]any{"tools": entries, "count": len(entries)})
}

func (s *Server) handleToolCard(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, ok := s.registry.Get(name)
	if !ok {
		writeDetail(w, http.StatusNotFound, "unknown tool %q", name)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Entry(t))
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, ok := s.registry.Get(name)
	if !ok {
		if s.registry.Disabled(name) {
			writeDetail(w, http.StatusServiceUnavailable, "tool %q is disabled by configuration", name)
			return
		}
		writeDetail(w, http.StatusNotFound, "unknown tool %q", name)
		return
	}

	args, err := decodeArgs(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: %v", err)
		return
	}

	if err := s.validator.Validate(name, args); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": "invalid arguments",
				"tool":   ve.Tool,
				"fields": ve.Fields,
			})
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, "invalid arguments: %v", err)
		return
	}

	env := s.runner.Run(r.Context(), t, args)
	log.Debug().
		Str("id", monitoring.RequestIDFromContext(r.Context())).
		Str("tool", name).
		Int("sources", len(env.SourceMeta)).
		Int("warnings", len(env.Warnings)).
		Msg("tool call complete")
	writeJSON(w, http.StatusOK, env)
}

// decodeArgs reads the tool-call body. An empty body means no arguments.
func decodeArgs(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"counters":  s.metrics.Stats(),
		"as_of_utc": provenance.NowUTC(),
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || json.Unmarshal(body, &req) != nil || strings.TrimSpace(req.Pattern) == "" {
		writeDetail(w, http.StatusBadRequest, "body must be {\"pattern\": \"<glob>\"}")
		return
	}

	removed, err := s.engine.Invalidate(r.Context(), req.Pattern)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "invalidate failed: %v", err)
		return
	}
	log.Info().Str("pattern", req.Pattern).Int("removed", removed).Msg("cache invalidated")
	writeJSON(w, http.StatusOK, map[string]any{"pattern": req.Pattern, "removed": removed})
}
