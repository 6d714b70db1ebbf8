package fabric

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantfab/market-gateway/internal/adapters"
	"github.com/quantfab/market-gateway/internal/cache"
)

// ResolveVerified serves one capability through the top two sources of the
// chain in parallel so the caller can cross-check the payloads. Each side is
// cache-first: the primary under the regular capability fingerprint, the
// secondary under a source-scoped one, so both return instantly when warm.
//
// Degradation ladder:
//   - fewer than two live sources: plain Resolve, no secondary
//   - secondary fails: primary alone, cross-check skipped
//   - primary fails: the secondary is promoted exactly as the fallback
//     chain would have promoted it, degraded with fallback_used set
//   - both fail: the remaining chain is walked; exhaustion reports every
//     source's reason
func (e *Engine) ResolveVerified(ctx context.Context, q Query) (primary, secondary *Result, err error) {
	chain := e.filterChain(q.Chain)
	if len(chain) < 2 {
		res, err := e.Resolve(ctx, q)
		return res, nil, err
	}

	key := e.Key(q)
	secondKey := e.sourceKey(q, chain[1].Name)

	var (
		pRes, sRes *Result
		pErr, sErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		pRes, pErr = e.resolveOne(ctx, q, chain[0], key)
		return nil
	})
	g.Go(func() error {
		sRes, sErr = e.resolveOne(ctx, q, chain[1], secondKey)
		return nil
	})
	_ = g.Wait() // both goroutines report through the captured vars

	switch {
	case pErr == nil && sErr == nil:
		return pRes, sRes, nil

	case pErr == nil:
		log.Debug().Err(sErr).
			Str("source", chain[1].Name).
			Str("capability", q.Capability).
			Msg("secondary unavailable, cross-check skipped")
		return pRes, nil, nil

	case sErr == nil:
		sRes.Meta.Degraded = true
		sRes.Meta.FallbackUsed = chain[0].Name
		e.metrics.RecordFallback()
		e.store(ctx, key, &cache.Entry{Payload: sRes.Payload, SourceMeta: sRes.Meta}, q.TTLSeconds)
		return sRes, nil, nil
	}

	errs := map[string]string{
		chain[0].Name: adapters.Reason(pErr),
		chain[1].Name: adapters.Reason(sErr),
	}
	if len(chain) > 2 {
		res, err := e.walk(ctx, q, key, chain[0].Name, chain[2:], errs)
		if err != nil {
			return nil, nil, err
		}
		return res, nil, nil
	}
	return nil, nil, &AllSourcesFailedError{Capability: q.Capability, Errors: errs}
}

// resolveOne is the single-source counterpart of Resolve: cache lookup
// under the given key, then one guarded fetch with write-through.
func (e *Engine) resolveOne(ctx context.Context, q Query, d adapters.Descriptor, key string) (*Result, error) {
	if entry, ok := e.lookup(ctx, key); ok {
		e.metrics.RecordCacheHit()
		return &Result{Payload: entry.Payload, Meta: entry.SourceMeta, FromCache: true}, nil
	}
	e.metrics.RecordCacheMiss()

	payload, meta, err := e.attempt(ctx, q, d)
	if err != nil {
		return nil, err
	}
	e.store(ctx, key, &cache.Entry{Payload: payload, SourceMeta: meta}, q.TTLSeconds)
	return &Result{Payload: payload, Meta: meta}, nil
}

// sourceKey fingerprints a query pinned to one provider, keeping
// verification entries apart from the shared capability entry.
func (e *Engine) sourceKey(q Query, source string) string {
	p := make(map[string]any, len(q.Params)+1)
	for k, v := range q.Params {
		p[k] = v
	}
	p["source"] = source
	return Fingerprint(q.Tool, q.Capability, p)
}
