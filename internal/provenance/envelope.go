package provenance

import (
	"encoding/json"
	"fmt"
	"sync"
)

// nullPayload marks a requested capability that produced no data.
var nullPayload = json.RawMessage("null")

// Builder accumulates one envelope for one tool invocation. Safe for
// concurrent use: capabilities resolved in parallel append through the same
// builder. SourceMeta entries keep the order in which upstream responses
// were finalized, not chain priority order.
type Builder struct {
	mu        sync.Mutex
	data      map[string]json.RawMessage
	meta      []SourceMeta
	conflicts []Conflict
	warnings  []string
	hits      int
	fresh     int
}

// NewBuilder returns an empty envelope builder.
func NewBuilder() *Builder {
	return &Builder{data: make(map[string]json.RawMessage)}
}

// SetCapability stores the payload for one capability. The payload is kept
// as raw JSON so a cache round trip stays byte-equivalent.
func (b *Builder) SetCapability(name string, payload json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[name] = payload
}

// SetCapabilityEmpty records a capability that was requested but could not
// be served; it serializes as an explicit null.
func (b *Builder) SetCapabilityEmpty(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[name] = nullPayload
}

// AddSourceMeta appends provenance for one upstream contribution.
func (b *Builder) AddSourceMeta(m SourceMeta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta = append(b.meta, m)
}

// AddConflict appends one resolved cross-source disagreement.
func (b *Builder) AddConflict(c Conflict) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conflicts = append(b.conflicts, c)
}

// AddWarning appends a human-readable warning string.
func (b *Builder) AddWarning(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(args) == 0 {
		b.warnings = append(b.warnings, format)
		return
	}
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// MarkCacheHit records that one capability was served from cache.
func (b *Builder) MarkCacheHit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits++
}

// MarkFresh records that one capability required upstream contact.
func (b *Builder) MarkFresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fresh++
}

// Build stamps as_of_utc and returns the finished envelope. Slices are never
// nil so the JSON always carries data, source_meta, conflicts and warnings.
// The builder never strips SourceMeta.
func (b *Builder) Build() *Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	env := &Envelope{
		Data:       b.data,
		SourceMeta: b.meta,
		Conflicts:  b.conflicts,
		Warnings:   b.warnings,
		AsOfUTC:    NowUTC(),
		Cached:     b.hits > 0 && b.fresh == 0,
	}
	if env.SourceMeta == nil {
		env.SourceMeta = []SourceMeta{}
	}
	if env.Conflicts == nil {
		env.Conflicts = []Conflict{}
	}
	if env.Warnings == nil {
		env.Warnings = []string{}
	}
	return env
}
