package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter is the single-process sliding window used when Redis is
// not configured.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.hits[key][:0]
	for _, t := range m.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= m.limit {
		m.hits[key] = kept
		return false, nil
	}
	m.hits[key] = append(kept, now)
	return true, nil
}

// Prune drops keys with no hits inside the window.
func (m *MemoryRateLimiter) Prune() {
	cutoff := m.now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, key)
		}
	}
}

func (m *MemoryRateLimiter) Close() error {
	return nil
}
