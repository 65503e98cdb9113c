package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shisei-toshokan/shisei/common/messaging"
	"github.com/shisei-toshokan/shisei/web/internal/config"
	"github.com/shisei-toshokan/shisei/web/internal/cspreport"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
	"github.com/shisei-toshokan/shisei/web/internal/ratelimit"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
)

func TestReportStore_AutoFollowsEnvironment(t *testing.T) {
	cfg := &config.Config{}
	cfg.Telemetry.ReportStore = "auto"
	cfg.Telemetry.ReportsDir = t.TempDir()

	cfg.CSP.Environment = "development"
	assert.IsType(t, &cspreport.FileStore{}, reportStore(context.Background(), cfg, slog.Default()))

	cfg.CSP.Environment = "production"
	assert.IsType(t, cspreport.DiscardStore{}, reportStore(context.Background(), cfg, slog.Default()))
}

func TestReportStore_Explicit(t *testing.T) {
	cfg := &config.Config{}
	cfg.CSP.Environment = "production"
	cfg.Telemetry.ReportStore = "file"
	assert.IsType(t, &cspreport.FileStore{}, reportStore(context.Background(), cfg, slog.Default()))

	cfg.Telemetry.ReportStore = "discard"
	assert.IsType(t, cspreport.DiscardStore{}, reportStore(context.Background(), cfg, slog.Default()))
}

func TestRateLimiter_Selection(t *testing.T) {
	cfg := config.TelemetryConfig{RateLimitCount: 5, RateLimitWindow: time.Minute}
	assert.IsType(t, ratelimit.NoOpRateLimiter{}, rateLimiter(cfg, nil, "test"))

	cfg.RateLimitEnabled = true
	assert.IsType(t, &ratelimit.MemoryRateLimiter{}, rateLimiter(cfg, nil, "test"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	assert.IsType(t, &ratelimit.RedisRateLimiter{}, rateLimiter(cfg, rdb, "test"))
}

func TestEventAndBaselineStores_FallBackWithoutRedis(t *testing.T) {
	sec := config.SecurityConfig{EventStore: "redis", EventCapacity: 10}
	assert.IsType(t, &secmon.MemoryStore{}, eventStore(sec, nil, "test"))

	tel := config.TelemetryConfig{BaselineStore: "redis", BaselineCapacity: 5}
	assert.IsType(t, &perf.MemoryBaselineStore{}, baselineStore(tel, nil, "test"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	assert.IsType(t, &secmon.RedisStore{}, eventStore(sec, rdb, "test"))
	assert.IsType(t, &perf.RedisBaselineStore{}, baselineStore(tel, rdb, "test"))
}

func TestConnectRedis(t *testing.T) {
	assert.Nil(t, connectRedis(context.Background(), config.RedisConfig{Enabled: false}, slog.Default()))

	mr := miniredis.RunT(t)
	client := connectRedis(context.Background(), config.RedisConfig{Enabled: true, URL: "redis://" + mr.Addr()}, slog.Default())
	require.NotNil(t, client)
	_ = client.Close()

	mr.Close()
	assert.Nil(t, connectRedis(context.Background(), config.RedisConfig{Enabled: true, URL: "redis://" + mr.Addr()}, slog.Default()))
}

func TestConnectNATS_DisabledIsNop(t *testing.T) {
	assert.IsType(t, messaging.NopPublisher{}, connectNATS(config.NATSConfig{}, slog.Default()))
}

func TestSnapshotSinks(t *testing.T) {
	cfg := &config.Config{}
	cfg.CSP.Environment = "development"
	cfg.Telemetry.PerformanceDir = t.TempDir()
	assert.Len(t, snapshotSinks(cfg, nil), 1)

	cfg.CSP.Environment = "production"
	assert.Empty(t, snapshotSinks(cfg, nil))

	assert.IsType(t, &perf.MemoryAlertStore{}, alertStore(nil))
}
