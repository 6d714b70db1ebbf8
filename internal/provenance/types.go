// Package provenance defines the envelope every tool returns and the
// per-source metadata stamped onto each upstream contribution.
//
// DESIGN: The envelope is the single surface contract both transports
// serialize. SourceMeta is immutable once built; a cached response restores
// its original SourceMeta set verbatim, so downstream consumers can always
// tell where a value came from and how old it is.
package provenance

import (
	"encoding/json"
	"time"
)

// Version is the provenance contract version stamped on every SourceMeta.
const Version = "v3"

// SourceMeta records where one slice of the response came from.
type SourceMeta struct {
	Provider       string `json:"provider"`
	Endpoint       string `json:"endpoint"`
	AsOfUTC        string `json:"as_of_utc"`
	TTLSeconds     int    `json:"ttl_seconds"`
	Version        string `json:"version"`
	Degraded       bool   `json:"degraded"`
	FallbackUsed   string `json:"fallback_used,omitempty"`
	ResponseTimeMS int64  `json:"response_time_ms,omitempty"`
}

// AsOf parses the meta timestamp. Returns the zero time if the field is
// malformed; callers treat that as "unknown age".
func (m SourceMeta) AsOf() time.Time {
	t, err := time.Parse(time.RFC3339, m.AsOfUTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Resolution names the policy applied to a cross-source disagreement.
type Resolution string

const (
	ResolutionPrimarySource   Resolution = "primary_source"
	ResolutionAverage         Resolution = "average"
	ResolutionLatestTimestamp Resolution = "latest_timestamp"
	ResolutionManual          Resolution = "manual"
)

// Conflict records a field disagreement between two or more sources and the
// decision taken. Values carries every provider value observed, not just the
// two compared, so three-way resolution stays a compatible extension.
type Conflict struct {
	Field        string         `json:"field"`
	Values       map[string]any `json:"values"`
	DiffPercent  *float64       `json:"diff_percent,omitempty"`
	DiffAbsolute *float64       `json:"diff_absolute,omitempty"`
	Resolution   Resolution     `json:"resolution"`
	FinalValue   any            `json:"final_value"`
}

// Envelope is the outer response shape for every tool invocation.
//
// Data maps capability name to its normalized payload; a capability that was
// requested but could not be served is present with a JSON null and a
// matching entry in Warnings. Cached is the one annotation a cache hit may
// add: true only when every contributing capability was served from cache.
type Envelope struct {
	Data       map[string]json.RawMessage `json:"data"`
	SourceMeta []SourceMeta               `json:"source_meta"`
	Conflicts  []Conflict                 `json:"conflicts"`
	Warnings   []string                   `json:"warnings"`
	AsOfUTC    string                     `json:"as_of_utc"`
	Cached     bool                       `json:"cached,omitempty"`
}

// NowUTC returns the current time as RFC-3339 UTC with a trailing Z, the
// format used for every as_of_utc field in the system.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
