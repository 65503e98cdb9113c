package perf

import (
	"context"
	"sync"
	"time"
)

// AlertSource tells whether an alert was reported by a client or raised by
// server-side detection.
type AlertSource string

const (
	SourceClient AlertSource = "client"
	SourceServer AlertSource = "server"
)

// AlertRequest is the body accepted by the alert endpoint.
type AlertRequest struct {
	Metrics     *Snapshot    `json:"metrics,omitempty"`
	Regressions []Regression `json:"regressions"`
	Timestamp   int64        `json:"timestamp,omitempty"`
}

// Alert is a persisted performance alert.
type Alert struct {
	ID          string       `json:"alertId"`
	Severity    Severity     `json:"severity"`
	Source      AlertSource  `json:"source"`
	URL         string       `json:"url,omitempty"`
	SessionID   string       `json:"sessionId,omitempty"`
	Regressions []Regression `json:"regressions"`
	Metrics     *Snapshot    `json:"metrics,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// AlertStore persists alerts. List returns newest first.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert Alert) error
	ListAlerts(ctx context.Context, limit int) ([]Alert, error)
}

// MemoryAlertStore keeps the most recent alerts in memory.
type MemoryAlertStore struct {
	mu       sync.RWMutex
	alerts   []Alert
	capacity int
}

func NewMemoryAlertStore(capacity int) *MemoryAlertStore {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryAlertStore{capacity: capacity}
}

func (s *MemoryAlertStore) SaveAlert(_ context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.capacity {
		s.alerts = append([]Alert(nil), s.alerts[len(s.alerts)-s.capacity:]...)
	}
	return nil
}

func (s *MemoryAlertStore) ListAlerts(_ context.Context, limit int) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.alerts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Alert, 0, n)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}
