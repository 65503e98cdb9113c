package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisBaselineStore shares baseline history between workers. Each URL is a
// capped list; a set tracks which URLs have history.
type RedisBaselineStore struct {
	client   *redis.Client
	prefix   string
	capacity int64
}

func NewRedisBaselineStore(client *redis.Client, prefix string, capacity int) *RedisBaselineStore {
	if capacity <= 0 {
		capacity = DefaultBaselineCapacity
	}
	return &RedisBaselineStore{
		client:   client,
		prefix:   prefix + ":perf",
		capacity: int64(capacity),
	}
}

func (s *RedisBaselineStore) listKey(url string) string {
	return s.prefix + ":baselines:" + url
}

func (s *RedisBaselineStore) urlsKey() string {
	return s.prefix + ":baseline-urls"
}

func (s *RedisBaselineStore) Add(ctx context.Context, b Baseline) error {
	if b.URL == "" {
		return ErrMissingURL
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}

	key := s.listKey(b.URL)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -s.capacity, -1)
		pipe.SAdd(ctx, s.urlsKey(), b.URL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add baseline: %w", err)
	}
	return nil
}

func (s *RedisBaselineStore) History(ctx context.Context, url string) ([]Baseline, error) {
	raw, err := s.client.LRange(ctx, s.listKey(url), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load baselines: %w", err)
	}

	out := make([]Baseline, 0, len(raw))
	for _, item := range raw {
		var b Baseline
		if err := json.Unmarshal([]byte(item), &b); err != nil {
			slog.WarnContext(ctx, "skipping malformed baseline", slog.String("url", url), slog.String("error", err.Error()))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *RedisBaselineStore) URLs(ctx context.Context) ([]string, error) {
	urls, err := s.client.SMembers(ctx, s.urlsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list baseline urls: %w", err)
	}
	sort.Strings(urls)
	return urls, nil
}

func (s *RedisBaselineStore) Clear(ctx context.Context) error {
	urls, err := s.client.SMembers(ctx, s.urlsKey()).Result()
	if err != nil {
		return fmt.Errorf("list baseline urls: %w", err)
	}

	keys := make([]string, 0, len(urls)+1)
	for _, u := range urls {
		keys = append(keys, s.listKey(u))
	}
	keys = append(keys, s.urlsKey())

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear baselines: %w", err)
	}
	return nil
}
