package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int, window time.Duration) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, "test", limit, window), mr
}

func TestRedisRateLimiter_Limit(t *testing.T) {
	limiter, _ := newLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}

func TestRedisRateLimiter_WindowSlides(t *testing.T) {
	limiter, _ := newLimiter(t, 1, time.Second)
	base := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return base }
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = limiter.Allow(ctx, "k")
	assert.False(t, ok)

	limiter.now = func() time.Time { return base.Add(2 * time.Second) }
	ok, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRateLimiter_KeyPrefix(t *testing.T) {
	limiter, mr := newLimiter(t, 5, time.Minute)

	_, err := limiter.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:ratelimit:1.2.3.4"))
}

func TestRedisRateLimiter_RedisDown(t *testing.T) {
	limiter, mr := newLimiter(t, 5, time.Minute)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNoOpRateLimiter(t *testing.T) {
	var limiter RateLimiter = NoOpRateLimiter{}
	for i := 0; i < 100; i++ {
		ok, err := limiter.Allow(context.Background(), "any")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, limiter.Close())
}
