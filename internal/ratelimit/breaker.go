package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultFailureThreshold is the consecutive-failure count that opens a
	// circuit.
	DefaultFailureThreshold = 3
	// DefaultCooldown is how long an open circuit rejects calls before
	// admitting a single half-open probe.
	DefaultCooldown = 60 * time.Second
)

// Breaker short-circuits a source after repeated consecutive failures so the
// fallback engine stops burning its timeout budget on a dead upstream.
//
// States: closed (normal), open (reject until cooldown elapses), half-open
// (admit exactly one probe; success closes, failure re-opens).
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	consecutive int
	openUntil   time.Time
	probing     bool
}

// NewBreaker builds a breaker. Non-positive arguments use the defaults.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{threshold: threshold, cooldown: cooldown}
}

// Admit reports whether a call to this source may proceed. While open it
// returns false until the cooldown elapses, then admits exactly one probe;
// further callers keep getting false until that probe is recorded.
func (b *Breaker) Admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openUntil.IsZero() {
		return true
	}
	if time.Now().Before(b.openUntil) {
		return false
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// Record notes the outcome of an admitted call. A nil error closes the
// circuit and resets the failure count. Returns true when this call
// transitioned the circuit to open.
func (b *Breaker) Record(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.consecutive = 0
		b.openUntil = time.Time{}
		b.probing = false
		return false
	}

	b.consecutive++
	if b.probing {
		// Failed probe: re-open for another cooldown window.
		b.openUntil = time.Now().Add(b.cooldown)
		b.probing = false
		return true
	}
	if b.openUntil.IsZero() && b.consecutive >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
		return true
	}
	return false
}

// Open reports whether the circuit currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.openUntil.IsZero() && time.Now().Before(b.openUntil)
}

// Guard bundles the bucket and breaker for one source.
type Guard struct {
	Bucket  *Bucket
	Breaker *Breaker
}

// NewGuard builds a guard for a per-minute quota with default breaker
// settings.
func NewGuard(perMin int) *Guard {
	return &Guard{
		Bucket:  NewBucket(perMin),
		Breaker: NewBreaker(0, 0),
	}
}
