// Package messaging defines the broker-agnostic publishing interface used to
// fan security events and performance alerts out to other consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Message is a payload published to a subject.
type Message struct {
	Subject   string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
}

// Publisher publishes messages to subjects. Publishing is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishMsg(ctx context.Context, msg *Message) error
	Close() error
}

// Client is a Publisher with connection lifecycle controls.
type Client interface {
	Publisher

	// Drain flushes pending messages before closing.
	Drain() error
	IsConnected() bool
}

// PublishJSON marshals v and publishes it on subject.
func PublishJSON(ctx context.Context, p Publisher, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.Publish(ctx, subject, data)
}

// NopPublisher discards every message. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NopPublisher) PublishMsg(context.Context, *Message) error    { return nil }
func (NopPublisher) Close() error                                  { return nil }
