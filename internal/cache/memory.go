package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// cleanupInterval is how often the janitor sweeps expired entries.
const cleanupInterval = time.Minute

type memEntry struct {
	raw       []byte
	expiresAt time.Time
}

// Memory is an in-process Cache with per-entry TTL and a background janitor.
// Entries are stored serialized so a Get returns an independent copy and a
// round trip is byte-equivalent to the Redis backend.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]memEntry
	stopChan chan struct{}
	stopped  bool
}

// NewMemory creates an in-memory cache and starts its cleanup goroutine.
func NewMemory() *Memory {
	m := &Memory{
		data:     make(map[string]memEntry),
		stopChan: make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Get returns the entry for key if present and not expired.
func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.data[key]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	entry, ok := decode(e.raw)
	if !ok {
		return nil, false, nil
	}
	return entry, true, nil
}

// Set stores the entry under key for ttl, overwriting any previous value.
func (m *Memory) Set(_ context.Context, key string, e *Entry, ttl time.Duration) error {
	raw, err := encode(e)
	if err != nil {
		return &BackendError{Op: "set", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.data[key] = memEntry{raw: raw, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Invalidate deletes every key matching the glob pattern.
func (m *Memory) Invalidate(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.data {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return removed, &BackendError{Op: "invalidate", Err: err}
		}
		if ok {
			delete(m.data, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries, expired or not. Diagnostics only.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close stops the cleanup goroutine and drops all entries.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.stopped = true
		close(m.stopChan)
		m.data = nil
	}
	return nil
}

// cleanup periodically removes expired entries.
func (m *Memory) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.mu.Lock()
			if !m.stopped {
				now := time.Now()
				for key, e := range m.data {
					if now.After(e.expiresAt) {
						delete(m.data, key)
					}
				}
			}
			m.mu.Unlock()
		}
	}
}

// Ensure Memory implements Cache
var _ Cache = (*Memory)(nil)
