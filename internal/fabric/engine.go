// Package fabric is the data source orchestration core: cache-first
// resolution over priority-ordered fallback chains, cross-source
// verification and conflict resolution.
//
// DESIGN: One Engine per process. Every capability request takes the same
// path: fingerprint → cache → fallback chain, first success wins and is
// written through. Identical concurrent requests collapse into a single
// upstream flight. Circuit breakers live at the engine rather than inside
// the adapters so source health is judged where fallback decisions are
// made.
//
// FLOW:
//  1. Key(tool, capability, params) → cache lookup; a hit returns the
//     stored payload and SourceMeta verbatim, no upstream contact
//  2. Miss: the chain is filtered to registered, non-open sources and
//     walked in priority order
//  3. A non-primary success is stamped degraded with fallback_used naming
//     the intended primary
//  4. Exhaustion yields AllSourcesFailedError with one reason per source
package fabric

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/quantfab/market-gateway/internal/adapters"
	"github.com/quantfab/market-gateway/internal/cache"
	"github.com/quantfab/market-gateway/internal/monitoring"
	"github.com/quantfab/market-gateway/internal/provenance"
	"github.com/quantfab/market-gateway/internal/ratelimit"
)

// Query describes one capability resolution request.
type Query struct {
	Tool       string
	Capability string

	// DataType selects the adapter endpoint and transform. Defaults to the
	// capability name.
	DataType string

	// Params feed adapter path placeholders and the query string, and are
	// part of the cache fingerprint.
	Params map[string]string

	// Chain is the priority-ordered source list configured for
	// (tool, capability).
	Chain []adapters.Descriptor

	TTLSeconds int
}

func (q Query) dataType() string {
	if q.DataType != "" {
		return q.DataType
	}
	return q.Capability
}

// Result is one resolved capability: the normalized payload and the
// provenance of the source that served it.
type Result struct {
	Payload   json.RawMessage
	Meta      provenance.SourceMeta
	FromCache bool
}

// Engine is the fallback engine.
type Engine struct {
	registry *adapters.Registry
	cache    cache.Cache
	metrics  *monitoring.Metrics

	mu       sync.Mutex
	breakers map[string]*ratelimit.Breaker

	flight singleflight.Group
}

// NewEngine builds the engine. metrics may be nil.
func NewEngine(reg *adapters.Registry, c cache.Cache, m *monitoring.Metrics) *Engine {
	return &Engine{
		registry: reg,
		cache:    c,
		metrics:  m,
		breakers: make(map[string]*ratelimit.Breaker),
	}
}

// breaker returns the circuit for a source, creating it on first use.
func (e *Engine) breaker(source string) *ratelimit.Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[source]
	if !ok {
		b = ratelimit.NewBreaker(0, 0)
		e.breakers[source] = b
	}
	return b
}

// Key returns the cache fingerprint for a query.
func (e *Engine) Key(q Query) string {
	p := make(map[string]any, len(q.Params))
	for k, v := range q.Params {
		p[k] = v
	}
	return Fingerprint(q.Tool, q.Capability, p)
}

// Resolve serves one capability: cache first, then the fallback chain.
// Identical concurrent queries share a single upstream flight.
func (e *Engine) Resolve(ctx context.Context, q Query) (*Result, error) {
	key := e.Key(q)

	if entry, ok := e.lookup(ctx, key); ok {
		e.metrics.RecordCacheHit()
		return &Result{Payload: entry.Payload, Meta: entry.SourceMeta, FromCache: true}, nil
	}
	e.metrics.RecordCacheMiss()

	v, err, _ := e.flight.Do(key, func() (any, error) {
		// The flight winner may have populated the cache after our miss.
		if entry, ok := e.lookup(ctx, key); ok {
			return &Result{Payload: entry.Payload, Meta: entry.SourceMeta, FromCache: true}, nil
		}
		return e.fetch(ctx, q, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Invalidate removes cached entries matching a glob pattern.
func (e *Engine) Invalidate(ctx context.Context, pattern string) (int, error) {
	return e.cache.Invalidate(ctx, pattern)
}

// lookup wraps cache.Get with the degrade-to-miss policy.
func (e *Engine) lookup(ctx context.Context, key string) (*cache.Entry, bool) {
	entry, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache lookup failed, treating as miss")
		return nil, false
	}
	return entry, ok
}

// store writes through to the cache. Best effort.
func (e *Engine) store(ctx context.Context, key string, entry *cache.Entry, ttlSeconds int) {
	if ttlSeconds <= 0 {
		return
	}
	if err := e.cache.Set(ctx, key, entry, time.Duration(ttlSeconds)*time.Second); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// filterChain drops sources that are not registered (unknown or skipped for
// missing credentials) or whose circuit is in its cooldown window.
func (e *Engine) filterChain(in []adapters.Descriptor) []adapters.Descriptor {
	out := make([]adapters.Descriptor, 0, len(in))
	for _, d := range in {
		if _, ok := e.registry.Get(d.Name); !ok {
			continue
		}
		if e.breaker(d.Name).Open() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (e *Engine) fetch(ctx context.Context, q Query, key string) (*Result, error) {
	chain := e.filterChain(q.Chain)
	if len(chain) == 0 {
		return nil, &AllSourcesFailedError{
			Capability: q.Capability,
			Errors:     map[string]string{"error": "no sources configured"},
		}
	}
	return e.walk(ctx, q, key, chain[0].Name, chain, make(map[string]string))
}

// walk tries each source in order. The first success is stamped (degraded
// when the serving source is not the intended primary), written through and
// returned; every failure is collected by name.
func (e *Engine) walk(ctx context.Context, q Query, key, primary string, chain []adapters.Descriptor, errs map[string]string) (*Result, error) {
	for _, d := range chain {
		payload, meta, err := e.attempt(ctx, q, d)
		if err != nil {
			errs[d.Name] = adapters.Reason(err)
			log.Debug().Err(err).
				Str("source", d.Name).
				Str("capability", q.Capability).
				Msg("source failed, trying next")
			continue
		}

		if d.Name != primary {
			meta.Degraded = true
			meta.FallbackUsed = primary
			e.metrics.RecordFallback()
		}
		e.store(ctx, key, &cache.Entry{Payload: payload, SourceMeta: meta}, q.TTLSeconds)
		return &Result{Payload: payload, Meta: meta}, nil
	}
	return nil, &AllSourcesFailedError{Capability: q.Capability, Errors: errs}
}

// attempt runs one guarded fetch against a single source: circuit
// admission, the upstream call, failure recording.
func (e *Engine) attempt(ctx context.Context, q Query, d adapters.Descriptor) (json.RawMessage, provenance.SourceMeta, error) {
	a, ok := e.registry.Get(d.Name)
	if !ok {
		return nil, provenance.SourceMeta{}, &adapters.SourceError{
			Provider: d.Name,
			Kind:     adapters.ErrTransport,
			Err:      errors.New("source not registered"),
		}
	}

	br := e.breaker(d.Name)
	if !br.Admit() {
		return nil, provenance.SourceMeta{}, &adapters.SourceError{
			Provider: d.Name,
			Kind:     adapters.ErrCircuitOpen,
			Err:      errors.New("source cooling down"),
		}
	}

	started := time.Now()
	payload, meta, err := adapters.Fetch(ctx, a, adapters.Request{
		DataType:   q.dataType(),
		Params:     q.Params,
		TTLSeconds: q.TTLSeconds,
	})
	if br.Record(err) {
		e.metrics.RecordCircuitOpen(d.Name)
		log.Warn().Str("source", d.Name).Str("capability", q.Capability).Msg("circuit opened")
	}
	if err != nil {
		e.metrics.RecordUpstream(d.Name, string(adapters.KindOf(err)), time.Since(started))
		return nil, provenance.SourceMeta{}, err
	}
	e.metrics.RecordUpstream(d.Name, "ok", time.Since(started))
	return payload, meta, nil
}
