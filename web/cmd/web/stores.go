package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/common/messaging"
	"github.com/shisei-toshokan/shisei/common/messaging/nats"
	"github.com/shisei-toshokan/shisei/web/internal/config"
	"github.com/shisei-toshokan/shisei/web/internal/cspreport"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
	"github.com/shisei-toshokan/shisei/web/internal/ratelimit"
	"github.com/shisei-toshokan/shisei/web/internal/repository"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
)

const connectTimeout = 5 * time.Second

// connectRedis returns nil when Redis is disabled or unreachable; callers fall
// back to in-process state.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory state", logging.Error(err))
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory state", logging.Error(err))
		_ = client.Close()
		return nil
	}

	logger.Info("connected to redis", slog.String("url", opts.Addr))
	return client
}

// connectNATS returns a no-op publisher when NATS is disabled or unreachable.
func connectNATS(cfg config.NATSConfig, logger *slog.Logger) messaging.Publisher {
	if !cfg.Enabled {
		return messaging.NopPublisher{}
	}

	natsCfg := nats.DefaultConfig()
	natsCfg.URL = cfg.URL
	natsCfg.MaxReconnects = cfg.MaxReconnects
	natsCfg.ReconnectWait = cfg.ReconnectWait

	client, err := nats.NewClient(natsCfg)
	if err != nil {
		logger.Warn("NATS unavailable, event fan-out disabled", logging.Error(err))
		return messaging.NopPublisher{}
	}
	logger.Info("connected to NATS", slog.String("url", cfg.URL))
	return client
}

// openRepository runs migrations and opens the pool. Nil when the database is
// disabled.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*repository.PostgresRepository, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	connString := cfg.Postgres.ConnString()

	logger.Info("running database migrations")
	m, err := migrate.New(cfg.MigrationsPath, connString)
	if err != nil {
		return nil, fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo, err := repository.NewPostgresRepository(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return repo, nil
}

func eventStore(cfg config.SecurityConfig, rdb *redis.Client, prefix string) secmon.EventStore {
	if cfg.EventStore == "redis" && rdb != nil {
		return secmon.NewRedisStore(rdb, prefix, cfg.EventCapacity)
	}
	return secmon.NewMemoryStore(cfg.EventCapacity)
}

func baselineStore(cfg config.TelemetryConfig, rdb *redis.Client, prefix string) perf.BaselineStore {
	if cfg.BaselineStore == "redis" && rdb != nil {
		return perf.NewRedisBaselineStore(rdb, prefix, cfg.BaselineCapacity)
	}
	return perf.NewMemoryBaselineStore(cfg.BaselineCapacity)
}

func rateLimiter(cfg config.TelemetryConfig, rdb *redis.Client, prefix string) ratelimit.RateLimiter {
	switch {
	case !cfg.RateLimitEnabled:
		return ratelimit.NoOpRateLimiter{}
	case rdb != nil:
		return ratelimit.NewRedisRateLimiter(rdb, prefix+":ratelimit", cfg.RateLimitCount, cfg.RateLimitWindow)
	default:
		return ratelimit.NewMemoryRateLimiter(cfg.RateLimitCount, cfg.RateLimitWindow)
	}
}

// reportStore resolves telemetry.report_store. "auto" keeps reports on disk
// in development and drops them in production.
func reportStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) cspreport.Store {
	kind := cfg.Telemetry.ReportStore
	if kind == "auto" || kind == "" {
		kind = "file"
		if cfg.CSP.IsProduction() {
			kind = "discard"
		}
	}

	switch kind {
	case "file":
		return cspreport.NewFileStore(cfg.Telemetry.ReportsDir)
	case "opensearch":
		client, err := cspreport.NewOpenSearchClient(cspreport.OpenSearchConfig{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.OpenSearch.IndexPrefix,
		})
		if err != nil {
			logger.Warn("opensearch client failed, discarding CSP reports", logging.Error(err))
			return cspreport.DiscardStore{}
		}
		store := cspreport.NewOpenSearchStore(client, cfg.OpenSearch.IndexPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn("opensearch unreachable, reports will be retried per request", logging.Error(err))
		}
		return store
	default:
		return cspreport.DiscardStore{}
	}
}

// snapshotSinks lists where accepted batches are written besides the
// in-memory store: JSON files in development and Postgres when enabled.
func snapshotSinks(cfg *config.Config, repo *repository.PostgresRepository) []perf.SnapshotSink {
	var sinks []perf.SnapshotSink
	if !cfg.CSP.IsProduction() && cfg.Telemetry.PerformanceDir != "" {
		sinks = append(sinks, perf.NewFileSink(cfg.Telemetry.PerformanceDir))
	}
	if repo != nil {
		sinks = append(sinks, repo)
	}
	return sinks
}

func alertStore(repo *repository.PostgresRepository) perf.AlertStore {
	if repo != nil {
		return repo
	}
	return perf.NewMemoryAlertStore(0)
}
