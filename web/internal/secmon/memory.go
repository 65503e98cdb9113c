package secmon

import (
	"context"
	"sync"
)

// MemoryStore keeps events in process memory. Each worker process has its own copy.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []SecurityEvent
	capacity int
}

// NewMemoryStore creates a store holding at most capacity events.
// A non-positive capacity uses DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		events:   make([]SecurityEvent, 0, capacity),
		capacity: capacity,
	}
}

func (s *MemoryStore) Append(_ context.Context, event SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.capacity {
		// Shift instead of reslicing so the backing array does not grow without bound.
		n := copy(s.events, s.events[len(s.events)-s.capacity+1:])
		s.events = s.events[:n]
	}
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of the events, oldest first.
func (s *MemoryStore) List(_ context.Context) ([]SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SecurityEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.events = s.events[:0]
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}
