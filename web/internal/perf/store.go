package perf

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// DefaultBaselineCapacity bounds the history kept per URL.
const DefaultBaselineCapacity = 20

var ErrMissingURL = errors.New("baseline url is required")

// ErrInvalidSeverity is returned for a client regression whose severity is
// not one of the defined bands.
var ErrInvalidSeverity = errors.New("invalid regression severity")

// BaselineStore keeps a capped, ordered history per URL. Adding beyond
// capacity evicts the oldest entry for that URL.
type BaselineStore interface {
	Add(ctx context.Context, b Baseline) error
	// History returns baselines for url, oldest first.
	History(ctx context.Context, url string) ([]Baseline, error)
	URLs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// MemoryBaselineStore keeps baselines in process memory.
type MemoryBaselineStore struct {
	mu       sync.RWMutex
	byURL    map[string][]Baseline
	capacity int
}

func NewMemoryBaselineStore(capacity int) *MemoryBaselineStore {
	if capacity <= 0 {
		capacity = DefaultBaselineCapacity
	}
	return &MemoryBaselineStore{
		byURL:    make(map[string][]Baseline),
		capacity: capacity,
	}
}

func (s *MemoryBaselineStore) Add(_ context.Context, b Baseline) error {
	if b.URL == "" {
		return ErrMissingURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.byURL[b.URL], b)
	if len(history) > s.capacity {
		history = append([]Baseline(nil), history[len(history)-s.capacity:]...)
	}
	s.byURL[b.URL] = history
	return nil
}

func (s *MemoryBaselineStore) History(_ context.Context, url string) ([]Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Baseline, len(s.byURL[url]))
	copy(out, s.byURL[url])
	return out, nil
}

func (s *MemoryBaselineStore) URLs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make([]string, 0, len(s.byURL))
	for u := range s.byURL {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

func (s *MemoryBaselineStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.byURL = make(map[string][]Baseline)
	s.mu.Unlock()
	return nil
}
