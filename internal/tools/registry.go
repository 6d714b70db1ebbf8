package tools

import (
	"github.com/rs/zerolog/log"

	"github.com/quantfab/market-gateway/internal/config"
)

// Entry is the full registry card served by /tools/registry.
type Entry struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Endpoint     string           `json:"endpoint"`
	InputSchema  map[string]any   `json:"input_schema"`
	OutputSchema map[string]any   `json:"output_schema"`
	Examples     []map[string]any `json:"examples"`
	Capabilities []string         `json:"capabilities"`
	Freshness    Freshness        `json:"freshness"`
	Limitations  []string         `json:"limitations"`
	CostHints    []string         `json:"cost_hints"`
}

// Registry holds the enabled tools in declaration order. Built once at
// startup, read-only afterwards.
type Registry struct {
	cfg      *config.Config
	tools    []*Tool
	byName   map[string]*Tool
	disabled map[string]bool
}

// NewRegistry builds the registry from the full tool set, dropping tools
// the config disables.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{cfg: cfg, byName: make(map[string]*Tool), disabled: make(map[string]bool)}
	for _, t := range []*Tool{
		newOverviewTool(),
		newMicrostructureTool(),
		newDerivativesTool(),
		newOnchainTool(),
		newMacroTool(),
		newSentimentTool(),
	} {
		if !cfg.ToolEnabled(t.Name) {
			log.Info().Str("tool", t.Name).Msg("tool disabled by config")
			r.disabled[t.Name] = true
			continue
		}
		r.tools = append(r.tools, t)
		r.byName[t.Name] = t
	}
	return r
}

// Get returns an enabled tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Disabled reports whether name is a known tool that config switched off,
// which transports distinguish from an unknown name.
func (r *Registry) Disabled(name string) bool {
	return r.disabled[name]
}

// Tools returns the enabled tools in declaration order.
func (r *Registry) Tools() []*Tool {
	return r.tools
}

// Count returns the number of enabled tools.
func (r *Registry) Count() int {
	return len(r.tools)
}

// Entry renders the full registry card for one tool.
func (r *Registry) Entry(t *Tool) Entry {
	caps := make([]string, 0, len(t.Plan))
	for _, c := range t.Plan {
		caps = append(caps, c.Name)
	}
	return Entry{
		Name:         t.Name,
		Description:  t.Description,
		Endpoint:     "/tools/" + t.Name,
		InputSchema:  t.InputSchema,
		OutputSchema: t.OutputSchema,
		Examples:     t.Examples,
		Capabilities: caps,
		Freshness: Freshness{
			TypicalTTLSeconds: r.cfg.TTLFor(t.Name, caps[0]),
			AsOfSemantics:     t.AsOfSemantics,
		},
		Limitations: t.Limitations,
		CostHints:   t.CostHints,
	}
}

// Entries renders every enabled tool's card.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, r.Entry(t))
	}
	return out
}

// Schemas returns each enabled tool's input schema keyed by tool name, the
// form the argument validator compiles at startup.
func (r *Registry) Schemas() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.tools))
	for _, t := range r.tools {
		out[t.Name] = t.InputSchema
	}
	return out
}

// fieldSelector builds the include_fields schema: one selector or a list of
// them, with "all" always allowed.
func fieldSelector(fields ...string) map[string]any {
	enum := make([]any, 0, len(fields)+1)
	enum = append(enum, "all")
	for _, f := range fields {
		enum = append(enum, f)
	}
	return map[string]any{
		"description": "Capabilities to fetch; \"all\" or omitted fetches everything.",
		"oneOf": []any{
			map[string]any{"type": "string", "enum": enum},
			map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": enum}},
		},
	}
}

// envelopeSchema documents the envelope a tool returns, with the
// per-capability data properties filled in.
func envelopeSchema(dataProps map[string]any) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data": map[string]any{"type": "object", "properties": dataProps},
			"source_meta": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"provider":         map[string]any{"type": "string"},
						"endpoint":         map[string]any{"type": "string"},
						"as_of_utc":        map[string]any{"type": "string"},
						"ttl_seconds":      map[string]any{"type": "integer"},
						"version":          map[string]any{"type": "string"},
						"degraded":         map[string]any{"type": "boolean"},
						"fallback_used":    map[string]any{"type": "string"},
						"response_time_ms": map[string]any{"type": "integer"},
					},
				},
			},
			"conflicts": map[string]any{"type": "array"},
			"warnings":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"as_of_utc": map[string]any{"type": "string"},
			"cached":    map[string]any{"type": "boolean"},
		},
	}
}

// capabilityDoc documents one data key; null when the capability failed.
func capabilityDoc(desc string) map[string]any {
	return map[string]any{"type": []any{"object", "null"}, "description": desc}
}
