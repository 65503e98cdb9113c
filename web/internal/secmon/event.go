// Package secmon detects suspicious requests and keeps a capped log of
// security events for the admin API.
package secmon

import (
	"context"
	"time"
)

// EventType classifies a SecurityEvent.
type EventType string

const (
	SuspiciousRequest     EventType = "suspicious_request"
	AuthenticationFailure EventType = "authentication_failure"
	AuthorizationFailure  EventType = "authorization_failure"
	RateLimitExceeded     EventType = "rate_limit_exceeded"
)

// EventTypes lists every known type in a stable order.
var EventTypes = []EventType{SuspiciousRequest, AuthenticationFailure, AuthorizationFailure, RateLimitExceeded}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultCapacity bounds every EventStore unless configured otherwise.
const DefaultCapacity = 1000

// SecurityEvent is one recorded occurrence. Details always carries a
// "timestamp" entry mirroring Timestamp.
type SecurityEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventStore is an ordered, capped, append-only log. Appending beyond capacity
// evicts the oldest entries. Clear empties it entirely.
type EventStore interface {
	Append(ctx context.Context, event SecurityEvent) error
	List(ctx context.Context) ([]SecurityEvent, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}
