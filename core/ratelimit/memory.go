package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps window counters in process memory. It suits a single
// gateway instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	counts  map[string]int
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryLimiter returns an empty limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counts: map[string]int{}, expires: map[string]time.Time{}, now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, identity string, rules []Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	// every window counts the call before any is checked, like the redis
	// pipeline
	keys := make([]string, len(rules))
	lefts := make([]time.Duration, len(rules))
	for i, r := range rules {
		idx, left := Window(now, r)
		k := Key("mem", identity, r, idx)
		m.counts[k]++
		m.expires[k] = now.Add(left)
		keys[i], lefts[i] = k, left
	}
	for i, r := range rules {
		if m.counts[keys[i]] > r.Times {
			return &LimitedError{Rule: r, RetryAfter: lefts[i]}
		}
	}
	return nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
			delete(m.counts, k)
		}
	}
}
