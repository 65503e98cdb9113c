package secmon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/common/messaging"
	"github.com/shisei-toshokan/shisei/web/internal/metrics"
)

// Monitor records security events. It is constructed once and shared by the
// interceptor and the handlers.
type Monitor struct {
	store     EventStore
	publisher messaging.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewMonitor creates a Monitor. A nil publisher disables fan-out.
func NewMonitor(store EventStore, publisher messaging.Publisher, logger *slog.Logger) *Monitor {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Record stores one event. Storage and publish failures are logged and
// swallowed; security logging never fails a request.
func (m *Monitor) Record(ctx context.Context, eventType EventType, details map[string]any) SecurityEvent {
	now := m.now().UTC()
	merged := make(map[string]any, len(details)+1)
	for k, v := range details {
		merged[k] = v
	}
	merged["timestamp"] = now.Format(time.RFC3339Nano)

	event := SecurityEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Details:   merged,
		Timestamp: now,
	}

	metrics.SecurityEvents.WithLabelValues(string(eventType)).Inc()

	if err := m.store.Append(ctx, event); err != nil {
		metrics.SinkErrors.WithLabelValues("security_events").Inc()
		m.logger.ErrorContext(ctx, "failed to store security event",
			logging.EventType(string(eventType)), logging.Error(err))
	}

	if err := messaging.PublishJSON(ctx, m.publisher, messaging.SecurityEventSubject(string(eventType)), event); err != nil {
		m.logger.WarnContext(ctx, "failed to publish security event",
			logging.EventType(string(eventType)), logging.Error(err))
	}

	m.logger.WarnContext(ctx, "security event",
		logging.EventType(string(eventType)),
		slog.String("event_id", event.ID),
		slog.Any("details", merged),
	)
	return event
}

// RecordRequest records an event with the request's path, method and client IP
// merged into details.
func (m *Monitor) RecordRequest(r *http.Request, eventType EventType, details map[string]any) SecurityEvent {
	merged := map[string]any{
		"path":       r.URL.Path,
		"method":     r.Method,
		"ip":         httputil.GetClientIP(r),
		"user_agent": r.UserAgent(),
	}
	for k, v := range details {
		merged[k] = v
	}
	return m.Record(r.Context(), eventType, merged)
}

// Inspect runs the signature check and records at most one
// suspicious_request event. It never blocks the request.
func (m *Monitor) Inspect(r *http.Request) bool {
	match, ok := MatchRequest(r)
	if !ok {
		return false
	}

	metrics.SuspiciousPatterns.WithLabelValues(match.Signature.Name).Inc()
	m.Record(r.Context(), SuspiciousRequest, map[string]any{
		"url":        match.URL,
		"user_agent": match.UserAgent,
		"referer":    match.Referer,
		"ip":         httputil.GetClientIP(r),
		"pattern":    match.Signature.Pattern.String(),
		"signature":  match.Signature.Name,
		"field":      match.Field,
	})
	return true
}

// Events returns the stored events, oldest first.
func (m *Monitor) Events(ctx context.Context) ([]SecurityEvent, error) {
	return m.store.List(ctx)
}

// Clear empties the store.
func (m *Monitor) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Stats summarizes stored events.
type Stats struct {
	Total  int               `json:"total"`
	ByType map[EventType]int `json:"byType"`
}

// Stats counts stored events per type. Every known type is present.
func (m *Monitor) Stats(ctx context.Context) (Stats, error) {
	events, err := m.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(events), nil
}

// Summarize counts events per type.
func Summarize(events []SecurityEvent) Stats {
	stats := Stats{Total: len(events), ByType: make(map[EventType]int, len(EventTypes))}
	for _, t := range EventTypes {
		stats.ByType[t] = 0
	}
	for _, e := range events {
		stats.ByType[e.Type]++
	}
	return stats
}
