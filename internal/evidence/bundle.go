// Package evidence seals and persists per-invocation audit bundles.
//
// DESIGN: Every built envelope leaves a compact trail: which providers
// served which capabilities, how fresh each observation was, how many
// conflicts were resolved. Bundles are sealed with a content hash over the
// canonical item list and handed to a background collector, so persistence
// never touches the request path.
//
// FLOW:
//  1. The tool runner assembles one Item per upstream contribution
//  2. NewBundle seals them: watermark, conflict count, canonical hash,
//     freshness verdict
//  3. Collector.Record hands the bundle to a worker goroutine; a full queue
//     drops with a warning
//  4. The worker indexes the bundle in SQLite and optionally puts the full
//     JSON to S3
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/quantfab/market-gateway/internal/provenance"
)

// Item records one upstream contribution to an envelope.
type Item struct {
	Capability string `json:"capability"`
	Provider   string `json:"provider"`
	Endpoint   string `json:"endpoint"`
	AsOfUTC    string `json:"as_of_utc"`
	TTLSeconds int    `json:"ttl_seconds"`
	Degraded   bool   `json:"degraded,omitempty"`
}

// Bundle is the sealed audit record for one tool invocation.
type Bundle struct {
	BundleID        string `json:"bundle_id"`
	Tool            string `json:"tool"`
	Asset           string `json:"asset,omitempty"`
	AsOf            string `json:"as_of"`
	Watermark       string `json:"watermark"`
	Items           []Item `json:"items"`
	ConflictsCount  int    `json:"conflicts_count"`
	Hash            string `json:"hash"`
	FreshnessSLAMet bool   `json:"freshness_sla_met"`
}

// NewBundle seals the audit record for one built envelope. The watermark is
// the oldest source observation, the hash covers the canonical item list so
// bundles over the same evidence compare equal regardless of completion
// order.
func NewBundle(tool, asset string, env *provenance.Envelope, items []Item, slaSeconds int) *Bundle {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Capability != items[j].Capability {
			return items[i].Capability < items[j].Capability
		}
		return items[i].Provider < items[j].Provider
	})
	if items == nil {
		items = []Item{}
	}

	return &Bundle{
		BundleID:        uuid.NewString(),
		Tool:            tool,
		Asset:           asset,
		AsOf:            env.AsOfUTC,
		Watermark:       watermark(env.AsOfUTC, items),
		Items:           items,
		ConflictsCount:  len(env.Conflicts),
		Hash:            sealHash(items),
		FreshnessSLAMet: slaMet(env.AsOfUTC, items, slaSeconds),
	}
}

// watermark returns the oldest item observation time, falling back to the
// envelope's own stamp when no item carries a parseable one.
func watermark(envAsOf string, items []Item) string {
	oldest := ""
	var oldestT time.Time
	for _, it := range items {
		t, err := time.Parse(time.RFC3339, it.AsOfUTC)
		if err != nil {
			continue
		}
		if oldest == "" || t.Before(oldestT) {
			oldest, oldestT = it.AsOfUTC, t
		}
	}
	if oldest == "" {
		return envAsOf
	}
	return oldest
}

// sealHash hashes the RFC 8785 canonical form of the item list.
func sealHash(items []Item) string {
	raw, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("sha256:%s", hex.EncodeToString(sum[:]))
}

// slaMet reports whether every observation is within the freshness window of
// the envelope stamp. A zero or negative window disables the check.
func slaMet(envAsOf string, items []Item, slaSeconds int) bool {
	if slaSeconds <= 0 {
		return true
	}
	built, err := time.Parse(time.RFC3339, envAsOf)
	if err != nil {
		return false
	}
	window := time.Duration(slaSeconds) * time.Second
	for _, it := range items {
		t, err := time.Parse(time.RFC3339, it.AsOfUTC)
		if err != nil {
			return false
		}
		if built.Sub(t) > window {
			return false
		}
	}
	return true
}
