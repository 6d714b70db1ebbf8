package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantfab/market-gateway/internal/monitoring"
)

const headerRequestID = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture the status code for
// the request log.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestLog stamps every request with an ID, echoes it back and emits one
// structured line per request. The ID also rides the request context so
// handlers can correlate their own log lines.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, requestID)
		r = r.WithContext(monitoring.WithRequestIDContext(r.Context(), requestID))

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// recovery converts handler panics into a 500 without killing the listener.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Error().
					Interface("panic", v).
					Str("path", r.URL.Path).
					Str("stack", string(debug.Stack())).
					Msg("panic in handler")
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"detail": "internal error",
					"error":  fmt.Sprint(v),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
