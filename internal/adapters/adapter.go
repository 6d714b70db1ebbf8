// Package adapters provides provider-specific upstream access.
//
// DESIGN: Every upstream (exchange, indexer, explorer, news feed) is one
// Adapter. Adapters normalize heterogeneous provider payloads into the
// shared shapes in payload.go so the fallback engine and conflict resolver
// can treat sources interchangeably.
//
// FLOW:
//  1. Engine resolves the chain for (tool, capability) and gets adapters
//     from the registry
//  2. Fetch(ctx, adapter, req) = FetchRaw → Transform → provenance stamp
//  3. FetchRaw performs exactly one rate-limited HTTP call; failures are
//     classified (timeout, rate_limit, auth, not_found, transport, decode)
//
// To add a new provider: implement Transform over BaseAdapter, add the
// data-type path table, and register the constructor in registry.go.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantfab/market-gateway/internal/provenance"
)

// Descriptor is the static per-source configuration a chain entry points at.
type Descriptor struct {
	Name            string
	Priority        int
	BaseURL         string
	TimeoutMS       int
	RateLimitPerMin int
	RequiresAPIKey  bool
}

// Timeout returns the per-call deadline for this source.
func (d Descriptor) Timeout() time.Duration {
	if d.TimeoutMS <= 0 {
		return defaultTimeout
	}
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// Request describes one logical upstream query. DataType selects the
// adapter's endpoint and transform; Params feed path placeholders and the
// query string. Endpoint, when set, overrides the adapter's default path
// for the data type.
type Request struct {
	DataType        string
	Params          map[string]string
	Endpoint        string
	BaseURLOverride string
	Headers         map[string]string
	TTLSeconds      int
}

// RawResult is one upstream response before normalization. Endpoint is the
// concrete provider path actually requested, recorded into provenance.
type RawResult struct {
	Body     []byte
	Endpoint string
	Status   int
}

// Adapter is the uniform contract one provider satisfies. Implementations
// are stateless apart from credentials and are safe for concurrent use.
type Adapter interface {
	// Name returns the source identifier (e.g. "binance", "defillama").
	Name() string

	// FetchRaw performs one upstream HTTP call, respecting the adapter's
	// timeout and rate limit bucket.
	FetchRaw(ctx context.Context, req Request) (*RawResult, error)

	// Transform normalizes a raw provider payload for a data type. Pure;
	// the set of legal data types is per-adapter.
	Transform(raw []byte, dataType string) (any, error)

	// Close releases provider resources.
	Close() error
}

// Fetch composes FetchRaw, Transform and the provenance stamp: it measures
// response time and returns the normalized payload together with exactly
// one SourceMeta.
func Fetch(ctx context.Context, a Adapter, req Request) (json.RawMessage, provenance.SourceMeta, error) {
	started := time.Now()

	rr, err := a.FetchRaw(ctx, req)
	if err != nil {
		return nil, provenance.SourceMeta{}, err
	}

	normalized, err := a.Transform(rr.Body, req.DataType)
	if err != nil {
		return nil, provenance.SourceMeta{}, &SourceError{
			Provider: a.Name(),
			Kind:     ErrDecode,
			Err:      err,
		}
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		return nil, provenance.SourceMeta{}, &SourceError{
			Provider: a.Name(),
			Kind:     ErrDecode,
			Err:      fmt.Errorf("marshal normalized payload: %w", err),
		}
	}

	meta := provenance.SourceMeta{
		Provider:       a.Name(),
		Endpoint:       rr.Endpoint,
		AsOfUTC:        provenance.NowUTC(),
		TTLSeconds:     req.TTLSeconds,
		Version:        provenance.Version,
		ResponseTimeMS: time.Since(started).Milliseconds(),
	}
	return payload, meta, nil
}
