// Package ratelimit guards upstream providers with per-source token buckets
// and a lightweight failure circuit.
//
// DESIGN: One bucket and one breaker per configured source. The bucket
// refills at the per-minute quota divided by 60 with burst capacity equal to
// the full quota. Acquisition inside a fallback chain is fail-fast so the
// chain can move on to the next source instead of queuing.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Bucket is one provider's token bucket. Safe for concurrent use.
type Bucket struct {
	lim *rate.Limiter
}

// NewBucket builds a bucket for a per-minute quota. Non-positive quotas fall
// back to 60 requests per minute.
func NewBucket(perMin int) *Bucket {
	if perMin <= 0 {
		perMin = 60
	}
	return &Bucket{
		lim: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
	}
}

// Allow takes one token without blocking. A false return means the quota is
// exhausted right now; callers inside a fallback chain treat that as a
// rate-limit failure and try the next source.
func (b *Bucket) Allow() bool {
	return b.lim.Allow()
}

// Wait blocks until a token is available or ctx is cancelled. Used by
// callers outside a fallback chain that prefer queueing over failing.
func (b *Bucket) Wait(ctx context.Context) error {
	return b.lim.Wait(ctx)
}

// Tokens reports the tokens available right now, for diagnostics.
func (b *Bucket) Tokens() float64 {
	return b.lim.Tokens()
}
