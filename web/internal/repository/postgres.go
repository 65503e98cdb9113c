// Package repository persists performance snapshots and alerts in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shisei-toshokan/shisei/web/internal/perf"
)

// PostgresRepository implements perf.SnapshotSink and perf.AlertStore.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

var snapshotColumns = []string{
	"session_id", "url", "user_agent",
	"lcp", "fid", "cls", "fcp", "ttfb",
	"page_load_time", "memory_usage", "resource_load_time",
	"captured_at",
}

// WriteSnapshots bulk-inserts a batch with COPY.
func (r *PostgresRepository) WriteSnapshots(ctx context.Context, sessionID string, snaps []perf.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	rows := make([][]any, len(snaps))
	for i, s := range snaps {
		session := s.SessionID
		if session == "" {
			session = sessionID
		}
		rows[i] = []any{
			session, s.URL, s.UserAgent,
			s.LCP, s.FID, s.CLS, s.FCP, s.TTFB,
			s.PageLoadTime, s.MemoryUsage, s.ResourceLoadTime,
			s.Time(),
		}
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"performance_snapshots"}, snapshotColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to insert snapshots: %w", err)
	}
	return nil
}

// SnapshotsForURL returns the most recent snapshots for url, newest first.
func (r *PostgresRepository) SnapshotsForURL(ctx context.Context, url string, limit int) ([]perf.Snapshot, error) {
	query := `
		SELECT session_id, url, user_agent, lcp, fid, cls, fcp, ttfb,
		       page_load_time, memory_usage, resource_load_time, captured_at
		FROM performance_snapshots
		WHERE url = $1
		ORDER BY captured_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []perf.Snapshot{}
	for rows.Next() {
		var s perf.Snapshot
		var captured time.Time
		if err := rows.Scan(
			&s.SessionID, &s.URL, &s.UserAgent,
			&s.LCP, &s.FID, &s.CLS, &s.FCP, &s.TTFB,
			&s.PageLoadTime, &s.MemoryUsage, &s.ResourceLoadTime,
			&captured,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Timestamp = captured.UnixMilli()
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snaps, nil
}

// SaveAlert inserts an alert. Saving the same id twice is a no-op.
func (r *PostgresRepository) SaveAlert(ctx context.Context, a perf.Alert) error {
	regressions, err := json.Marshal(a.Regressions)
	if err != nil {
		return fmt.Errorf("failed to marshal regressions: %w", err)
	}
	var metrics []byte
	if a.Metrics != nil {
		if metrics, err = json.Marshal(a.Metrics); err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
	}

	query := `
		INSERT INTO performance_alerts (id, severity, source, url, session_id, regressions, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		a.ID, string(a.Severity), string(a.Source), a.URL, a.SessionID,
		regressions, metrics, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	return nil
}

// ListAlerts returns alerts newest first. A non-positive limit returns all.
func (r *PostgresRepository) ListAlerts(ctx context.Context, limit int) ([]perf.Alert, error) {
	query := `
		SELECT id::text, severity, source, url, session_id, regressions, metrics, created_at
		FROM performance_alerts
		ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []perf.Alert{}
	for rows.Next() {
		var a perf.Alert
		var severity, source string
		var regressions, metrics []byte
		if err := rows.Scan(&a.ID, &severity, &source, &a.URL, &a.SessionID, &regressions, &metrics, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = perf.Severity(severity)
		a.Source = perf.AlertSource(source)

		if err := json.Unmarshal(regressions, &a.Regressions); err != nil {
			return nil, fmt.Errorf("failed to decode regressions for alert %s: %w", a.ID, err)
		}
		if len(metrics) > 0 {
			a.Metrics = &perf.Snapshot{}
			if err := json.Unmarshal(metrics, a.Metrics); err != nil {
				return nil, fmt.Errorf("failed to decode metrics for alert %s: %w", a.ID, err)
			}
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}
