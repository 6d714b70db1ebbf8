// Package cache provides the read-through TTL cache the fallback engine
// consults before any upstream contact.
//
// DESIGN: Entries store the payload and its SourceMeta together, so a cache
// hit restores provenance verbatim and is indistinguishable from a fresh
// fetch apart from the envelope's cached annotation. Exactly one entry
// schema exists; anything that fails to decode is treated as a miss.
//
// Backend errors never fail a request: Get degrades to a miss, Set is best
// effort. Two implementations ship: Memory for tests and single-node
// deployments, Redis for shared deployments.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quantfab/market-gateway/internal/provenance"
)

// Entry is the single stored value shape: the normalized payload plus the
// SourceMeta produced when it was fetched.
type Entry struct {
	Payload    json.RawMessage       `json:"payload"`
	SourceMeta provenance.SourceMeta `json:"source_meta"`
}

// Cache is the TTL key-value store contract.
type Cache interface {
	// Get returns the entry for key, or ok=false on a miss. A non-nil error
	// indicates a backend failure that the caller should log and treat as a
	// miss.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores the entry under key for ttl. Best effort; an existing entry
	// is overwritten.
	Set(ctx context.Context, key string, e *Entry, ttl time.Duration) error

	// Invalidate removes every key matching a glob pattern and returns the
	// number removed. Operational use only, never in the request path.
	Invalidate(ctx context.Context, pattern string) (int, error)

	// Close releases backend resources.
	Close() error
}

// BackendError wraps a cache backend failure. The engine logs it and
// proceeds as if the lookup missed.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return "cache " + e.Op + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// encode serializes an entry for storage.
func encode(e *Entry) ([]byte, error) {
	return json.Marshal(e)
}

// decode deserializes a stored entry. A failure means a legacy or corrupt
// value; callers turn that into a miss.
func decode(raw []byte) (*Entry, bool) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if e.Payload == nil || e.SourceMeta.Provider == "" {
		return nil, false
	}
	return &e, true
}
