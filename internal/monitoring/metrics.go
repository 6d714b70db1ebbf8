// Package monitoring - metrics.go provides gateway counters.
//
// DESIGN: Atomic in-memory counters back the /stats endpoint; every counter
// is mirrored to Prometheus so /metrics exposes the same numbers with
// per-tool and per-provider labels. The collector takes an explicit
// Registerer so tests can use a private registry.
package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market_gateway"

// Metrics collects operational counters. All Record methods are safe on a
// nil receiver so wiring stays optional in tests.
type Metrics struct {
	toolCalls      atomic.Int64
	toolFailures   atomic.Int64
	upstreamCalls  atomic.Int64
	upstreamErrors atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	fallbacks      atomic.Int64
	conflicts      atomic.Int64
	circuitOpens   atomic.Int64

	promToolCalls    *prometheus.CounterVec
	promUpstream     *prometheus.CounterVec
	promCache        *prometheus.CounterVec
	promFallbacks    prometheus.Counter
	promConflicts    prometheus.Counter
	promCircuitOpens *prometheus.CounterVec
	promLatency      *prometheus.HistogramVec
}

// NewMetrics creates a collector registered on reg. Pass
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		promToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		promUpstream: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		promCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		promFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Capability resolutions served by a non-primary source.",
		}),
		promConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Cross-source conflicts recorded.",
		}),
		promCircuitOpens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_opens_total",
			Help:      "Circuit breaker open transitions by provider.",
		}, []string{"provider"}),
		promLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Upstream response time by provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	m.toolCalls.Add(1)
	outcome := "ok"
	if !success {
		m.toolFailures.Add(1)
		outcome = "error"
	}
	m.promToolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordUpstream records one upstream fetch attempt with its outcome kind
// ("ok" or an error kind) and duration.
func (m *Metrics) RecordUpstream(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamCalls.Add(1)
	if outcome != "ok" {
		m.upstreamErrors.Add(1)
	}
	m.promUpstream.WithLabelValues(provider, outcome).Inc()
	m.promLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Add(1)
	m.promCache.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Add(1)
	m.promCache.WithLabelValues("miss").Inc()
}

// RecordFallback records a resolution served by a non-primary source.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Add(1)
	m.promFallbacks.Inc()
}

// RecordConflict records one cross-source conflict.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Add(1)
	m.promConflicts.Inc()
}

// RecordCircuitOpen records a breaker opening for a provider.
func (m *Metrics) RecordCircuitOpen(provider string) {
	if m == nil {
		return
	}
	m.circuitOpens.Add(1)
	m.promCircuitOpens.WithLabelValues(provider).Inc()
}

// Stats returns current counters for the /stats endpoint.
func (m *Metrics) Stats() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"tool_calls":      m.toolCalls.Load(),
		"tool_failures":   m.toolFailures.Load(),
		"upstream_calls":  m.upstreamCalls.Load(),
		"upstream_errors": m.upstreamErrors.Load(),
		"cache_hits":      m.cacheHits.Load(),
		"cache_misses":    m.cacheMisses.Load(),
		"fallbacks":       m.fallbacks.Load(),
		"conflicts":       m.conflicts.Load(),
		"circuit_opens":   m.circuitOpens.Load(),
	}
}
