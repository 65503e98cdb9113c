package secmon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps events in a Redis list so every worker sees the same log.
type RedisStore struct {
	client   *redis.Client
	key      string
	capacity int64
}

// NewRedisStore stores events under "<prefix>:security:events".
func NewRedisStore(client *redis.Client, prefix string, capacity int) *RedisStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisStore{
		client:   client,
		key:      prefix + ":security:events",
		capacity: int64(capacity),
	}
}

// Append pushes and trims in one transaction so the list never exceeds capacity.
func (s *RedisStore) Append(ctx context.Context, event SecurityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal security event: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, -s.capacity, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append security event: %w", err)
	}
	return nil
}

// List returns events oldest first. Entries that fail to decode are skipped.
func (s *RedisStore) List(ctx context.Context) ([]SecurityEvent, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}

	events := make([]SecurityEvent, 0, len(raw))
	for _, item := range raw {
		var event SecurityEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			slog.WarnContext(ctx, "skipping malformed security event", slog.String("error", err.Error()))
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear security events: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count security events: %w", err)
	}
	return int(n), nil
}
