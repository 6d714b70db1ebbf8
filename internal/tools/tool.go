// Package tools implements the domain tool façades.
//
// DESIGN: Each tool is data, not code: a registry card plus an ordered
// capability plan. The shared Runner walks the plan so every tool gets the
// same behavior for include_fields expansion, dependency staging, parallel
// resolution, cross-checking, warning conversion and evidence collection.
// Adding a tool means declaring a plan, not writing an orchestrator.
//
// FLOW:
//  1. Arguments are normalized (symbol upper-cased, lists coerced)
//  2. include_fields picks capabilities; "all" expands to the full plan and
//     dependencies are pulled in transitively
//  3. Capabilities run stage by stage: independents in parallel, dependents
//     after the payloads they derive parameters from
//  4. Each capability resolves through the fallback engine, or through the
//     verifier + conflict resolver when the plan cross-checks it
//  5. Failures become envelope warnings with the data key set to null, and a
//     degraded fallback notes the failed primary as a warning; the envelope
//     is built and an evidence bundle is recorded fire-and-forget
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantfab/market-gateway/internal/adapters"
	"github.com/quantfab/market-gateway/internal/config"
	"github.com/quantfab/market-gateway/internal/evidence"
	"github.com/quantfab/market-gateway/internal/fabric"
	"github.com/quantfab/market-gateway/internal/monitoring"
	"github.com/quantfab/market-gateway/internal/provenance"
)

// Freshness documents a tool's data recency contract in its registry card.
type Freshness struct {
	TypicalTTLSeconds int    `json:"typical_ttl_seconds"`
	AsOfSemantics     string `json:"as_of_semantics"`
}

// Tool is one domain façade: its registry card plus the data-driven
// execution plan the Runner walks.
type Tool struct {
	Name        string
	Description string

	// Plan lists the capabilities in declaration order, which is also the
	// envelope data order users see documented.
	Plan []Capability

	InputSchema   map[string]any
	OutputSchema  map[string]any
	Examples      []map[string]any
	AsOfSemantics string
	Limitations   []string
	CostHints     []string
}

// Capability is one unit of a tool's plan.
type Capability struct {
	// Name is the envelope data key and the chain/TTL lookup key.
	Name string

	// DataType overrides the adapter data type when it differs from Name.
	DataType string

	// After names capabilities whose payloads this one derives parameters
	// from; they are scheduled in an earlier stage.
	After []string

	// Verify lists cross-checked numeric fields. Empty means single-source
	// resolution.
	Verify []VerifyField

	// Prepare derives engine parameters from the normalized arguments and
	// completed dependency payloads. An error records a warning and skips
	// the capability.
	Prepare PrepareFunc
}

// VerifyField selects one payload field for cross-source comparison. The
// divergence threshold comes from config at call time.
type VerifyField struct {
	Field    string
	Strategy provenance.Resolution
}

// PrepareFunc computes the upstream parameters for one capability.
type PrepareFunc func(inv *Invocation) (map[string]string, error)

// Arguments are the normalized tool inputs shared by every prepare func.
type Arguments struct {
	Symbol       string
	Chain        string
	TokenAddress string
	Protocol     string
	Limit        int
	Fields       []string
}

// Invocation is the per-call state one tool run threads through its
// capabilities. Completed payloads are recorded so dependent capabilities
// can derive parameters from them.
type Invocation struct {
	Tool string
	Args Arguments

	mu       sync.Mutex
	payloads map[string]json.RawMessage
}

// Payload returns the resolved payload of a completed capability.
func (inv *Invocation) Payload(capability string) (json.RawMessage, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	p, ok := inv.payloads[capability]
	return p, ok
}

func (inv *Invocation) setPayload(capability string, p json.RawMessage) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.payloads[capability] = p
}

// asset names what the invocation was about, for the evidence index.
func (inv *Invocation) asset() string {
	if inv.Args.Symbol != "" {
		return inv.Args.Symbol
	}
	return inv.Args.Protocol
}

// Runner executes tool plans against the orchestration fabric.
type Runner struct {
	engine   *fabric.Engine
	cfg      *config.Config
	metrics  *monitoring.Metrics
	evidence *evidence.Collector
}

// NewRunner wires the runner. metrics and collector may be nil.
func NewRunner(e *fabric.Engine, cfg *config.Config, m *monitoring.Metrics, ev *evidence.Collector) *Runner {
	return &Runner{engine: e, cfg: cfg, metrics: m, evidence: ev}
}

// Run executes one tool invocation and returns the built envelope.
// Capability failures surface as envelope warnings, so a run always
// produces an envelope.
func (r *Runner) Run(ctx context.Context, t *Tool, args map[string]any) *provenance.Envelope {
	inv := newInvocation(t, args)
	b := provenance.NewBuilder()
	evlog := &evidenceLog{}

	plan := selectPlan(t, inv.Args.Fields)
	var completed atomic.Int64
	for _, stage := range stages(plan) {
		var g errgroup.Group
		for _, c := range stage {
			c := c
			g.Go(func() error {
				if r.runCapability(ctx, t, c, inv, b, evlog) {
					completed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait() // failures are already on the envelope as warnings
	}

	env := b.Build()
	r.metrics.RecordToolCall(t.Name, completed.Load() > 0 || len(plan) == 0)
	r.evidence.Record(t.Name, inv.asset(), env, evlog.take())

	log.Debug().
		Str("tool", t.Name).
		Int("capabilities", len(plan)).
		Int64("completed", completed.Load()).
		Int("warnings", len(env.Warnings)).
		Msg("tool invocation finished")
	return env
}

// runCapability resolves one capability and reports whether it produced
// data.
func (r *Runner) runCapability(ctx context.Context, t *Tool, c Capability, inv *Invocation, b *provenance.Builder, evlog *evidenceLog) bool {
	params, err := c.Prepare(inv)
	if err != nil {
		b.AddWarning("%s: %v", c.Name, err)
		b.SetCapabilityEmpty(c.Name)
		return false
	}

	q := r.query(t, c, params)
	if len(c.Verify) > 0 {
		return r.runVerified(ctx, c, q, inv, b, evlog)
	}

	res, err := r.engine.Resolve(ctx, q)
	if err != nil {
		r.warnFailure(b, c.Name, err)
		b.SetCapabilityEmpty(c.Name)
		return false
	}
	r.complete(c.Name, res.Payload, res.FromCache, []provenance.SourceMeta{res.Meta}, inv, b, evlog)
	return true
}

// runVerified resolves a cross-checked capability through the verifier and
// applies each configured field policy in order.
func (r *Runner) runVerified(ctx context.Context, c Capability, q fabric.Query, inv *Invocation, b *provenance.Builder, evlog *evidenceLog) bool {
	primary, secondary, err := r.engine.ResolveVerified(ctx, q)
	if err != nil {
		r.warnFailure(b, c.Name, err)
		b.SetCapabilityEmpty(c.Name)
		return false
	}

	payload := primary.Payload
	cached := primary.FromCache
	metas := []provenance.SourceMeta{primary.Meta}

	if secondary != nil {
		cached = cached && secondary.FromCache
		metas = append(metas, secondary.Meta)
		for _, vf := range c.Verify {
			side := &fabric.Result{Payload: payload, Meta: primary.Meta}
			out, conflict := r.engine.CrossCheck(side, secondary, fabric.CheckPolicy{
				Field:            vf.Field,
				ThresholdPercent: r.cfg.ThresholdFor(vf.Field),
				Strategy:         vf.Strategy,
			})
			payload = out
			if conflict != nil {
				b.AddConflict(*conflict)
			}
		}
	}

	r.complete(c.Name, payload, cached, metas, inv, b, evlog)
	return true
}

// complete records a resolved capability on the envelope, the invocation
// state and the evidence log.
func (r *Runner) complete(name string, payload json.RawMessage, cached bool, metas []provenance.SourceMeta, inv *Invocation, b *provenance.Builder, evlog *evidenceLog) {
	b.SetCapability(name, payload)
	if cached {
		b.MarkCacheHit()
	} else {
		b.MarkFresh()
	}
	for _, m := range metas {
		b.AddSourceMeta(m)
		if m.Degraded && m.FallbackUsed != "" {
			b.AddWarning("%s: primary %s unavailable, served by %s", name, m.FallbackUsed, m.Provider)
		}
		evlog.add(evidence.Item{
			Capability: name,
			Provider:   m.Provider,
			Endpoint:   m.Endpoint,
			AsOfUTC:    m.AsOfUTC,
			TTLSeconds: m.TTLSeconds,
			Degraded:   m.Degraded,
		})
	}
	inv.setPayload(name, payload)
}

func (r *Runner) warnFailure(b *provenance.Builder, capability string, err error) {
	var asf *fabric.AllSourcesFailedError
	if errors.As(err, &asf) {
		b.AddWarning("%s", asf.Warning())
		return
	}
	b.AddWarning("%s: %v", capability, err)
}

// query assembles the engine query for one capability: the configured chain
// resolved into descriptors, the TTL policy and the prepared params.
func (r *Runner) query(t *Tool, c Capability, params map[string]string) fabric.Query {
	names := r.cfg.ChainFor(t.Name, c.Name)
	chain := make([]adapters.Descriptor, 0, len(names))
	for i, name := range names {
		src, ok := r.cfg.Sources[name]
		if !ok {
			continue
		}
		chain = append(chain, adapters.Descriptor{
			Name:            name,
			Priority:        i + 1,
			BaseURL:         src.BaseURL,
			TimeoutMS:       src.TimeoutMS,
			RateLimitPerMin: src.RateLimitPerMin,
			RequiresAPIKey:  src.RequiresAPIKey,
		})
	}
	return fabric.Query{
		Tool:       t.Name,
		Capability: c.Name,
		DataType:   c.DataType,
		Params:     params,
		Chain:      chain,
		TTLSeconds: r.cfg.TTLFor(t.Name, c.Name),
	}
}

// newInvocation normalizes raw arguments into the shared form.
func newInvocation(t *Tool, args map[string]any) *Invocation {
	return &Invocation{
		Tool: t.Name,
		Args: Arguments{
			Symbol:       strings.ToUpper(stringArg(args, "symbol")),
			Chain:        strings.ToLower(stringArg(args, "chain")),
			TokenAddress: stringArg(args, "token_address"),
			Protocol:     strings.ToLower(stringArg(args, "protocol")),
			Limit:        intArg(args, "limit"),
			Fields:       listArg(args, "include_fields"),
		},
		payloads: make(map[string]json.RawMessage),
	}
}

// selectPlan picks the requested capabilities in declaration order and pulls
// in their dependencies transitively. No selector, an empty list or "all"
// selects the whole plan.
func selectPlan(t *Tool, fields []string) []Capability {
	want := make(map[string]bool, len(t.Plan))
	all := len(fields) == 0
	for _, f := range fields {
		if f == "all" {
			all = true
			break
		}
	}
	if all {
		for _, c := range t.Plan {
			want[c.Name] = true
		}
	} else {
		for _, f := range fields {
			want[f] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for _, c := range t.Plan {
			if !want[c.Name] {
				continue
			}
			for _, dep := range c.After {
				if !want[dep] {
					want[dep] = true
					changed = true
				}
			}
		}
	}

	plan := make([]Capability, 0, len(t.Plan))
	for _, c := range t.Plan {
		if want[c.Name] {
			plan = append(plan, c)
		}
	}
	return plan
}

// stages groups a plan into dependency waves: a capability lands one stage
// after the latest of its dependencies.
func stages(plan []Capability) [][]Capability {
	stageOf := make(map[string]int, len(plan))
	max := 0
	for _, c := range plan {
		s := 0
		for _, dep := range c.After {
			if ds, ok := stageOf[dep]; ok && ds+1 > s {
				s = ds + 1
			}
		}
		stageOf[c.Name] = s
		if s > max {
			max = s
		}
	}

	out := make([][]Capability, max+1)
	for _, c := range plan {
		s := stageOf[c.Name]
		out[s] = append(out[s], c)
	}
	return out
}

// evidenceLog accumulates bundle items across parallel capabilities.
type evidenceLog struct {
	mu    sync.Mutex
	items []evidence.Item
}

func (l *evidenceLog) add(it evidence.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, it)
}

func (l *evidenceLog) take() []evidence.Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items
}

// stringArg reads one string argument, trimmed. Missing or non-string
// values read as empty.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intArg reads one integer argument, accepting the float64 JSON numbers
// decode to and numeric strings.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// listArg reads a list argument, coercing a bare string into a single-entry
// list.
func listArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}
