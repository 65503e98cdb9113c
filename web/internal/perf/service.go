package perf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/common/messaging"
	"github.com/shisei-toshokan/shisei/web/internal/metrics"
)

// Service ties snapshot ingestion, regression detection and alerting together.
type Service struct {
	snapshots SnapshotStore
	sinks     []SnapshotSink
	baselines BaselineStore
	detector  *Detector
	alerts    AlertStore
	publisher messaging.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Deps groups the collaborators of a Service. Nil Publisher and Logger fall
// back to no-op and slog.Default.
type Deps struct {
	Snapshots SnapshotStore
	Sinks     []SnapshotSink
	Baselines BaselineStore
	Alerts    AlertStore
	Publisher messaging.Publisher
	Logger    *slog.Logger
}

func NewService(d Deps) *Service {
	if d.Publisher == nil {
		d.Publisher = messaging.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		snapshots: d.Snapshots,
		sinks:     d.Sinks,
		baselines: d.Baselines,
		detector:  NewDetector(d.Baselines),
		alerts:    d.Alerts,
		publisher: d.Publisher,
		logger:    d.Logger,
		now:       time.Now,
	}
}

// RecordSnapshots stores a batch, forwards it to the sinks and checks the most
// recent snapshot per URL for regressions. Persistence failures are logged and
// swallowed. It returns the alerts raised.
func (s *Service) RecordSnapshots(ctx context.Context, sessionID string, snaps []Snapshot) []Alert {
	if len(snaps) == 0 {
		return nil
	}

	batch := make([]Snapshot, len(snaps))
	for i, snap := range snaps {
		if snap.SessionID == "" {
			snap.SessionID = sessionID
		}
		batch[i] = snap
	}
	metrics.Snapshots.Add(float64(len(batch)))

	if err := s.snapshots.Append(ctx, batch); err != nil {
		s.sinkFailed(ctx, "snapshot_store", err)
	}
	for _, sink := range s.sinks {
		if err := sink.WriteSnapshots(ctx, sessionID, batch); err != nil {
			s.sinkFailed(ctx, fmt.Sprintf("%T", sink), err)
		}
	}

	s.logger.InfoContext(ctx, "performance metrics received",
		logging.SessionID(sessionID),
		slog.Int("count", len(batch)),
	)

	var raised []Alert
	for _, snap := range latestPerURL(batch) {
		result, err := s.detector.Detect(ctx, snap.ToBaseline())
		if err != nil {
			s.logger.WarnContext(ctx, "regression check failed", logging.URL(snap.URL), logging.Error(err))
			continue
		}
		if !result.Regressed {
			continue
		}

		snapCopy := snap
		alert, err := s.raise(ctx, SourceServer, &snapCopy, result.Regressions)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to raise alert", logging.URL(snap.URL), logging.Error(err))
			continue
		}
		raised = append(raised, alert)
	}
	return raised
}

// latestPerURL keeps the newest snapshot for each URL that carries vitals.
func latestPerURL(batch []Snapshot) []Snapshot {
	index := make(map[string]int)
	var out []Snapshot
	for _, snap := range batch {
		if snap.URL == "" || !snap.HasVitals() {
			continue
		}
		i, seen := index[snap.URL]
		switch {
		case !seen:
			index[snap.URL] = len(out)
			out = append(out, snap)
		case snap.Timestamp >= out[i].Timestamp:
			out[i] = snap
		}
	}
	return out
}

// RaiseAlert records a client-reported alert. Regressions on known metrics are
// always reclassified from their change; a client severity is only kept for
// metrics without thresholds. The overall severity comes from OverallSeverity.
func (s *Service) RaiseAlert(ctx context.Context, req AlertRequest) (Alert, error) {
	regs := make([]Regression, len(req.Regressions))
	for i, r := range req.Regressions {
		if r.Change == 0 && r.Current != r.Baseline {
			r.Change = r.Current - r.Baseline
		}
		switch _, known := Thresholds[r.Metric]; {
		case known:
			r.Severity = ClassifyChange(r.Metric, r.Change)
		case r.Severity == "":
			r.Severity = SeverityNone
		case !r.Severity.Valid():
			return Alert{}, fmt.Errorf("%w: %q for %s", ErrInvalidSeverity, r.Severity, r.Metric)
		}
		regs[i] = r
	}
	return s.raise(ctx, SourceClient, req.Metrics, regs)
}

func (s *Service) raise(ctx context.Context, source AlertSource, snap *Snapshot, regs []Regression) (Alert, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Alert{}, fmt.Errorf("generate alert id: %w", err)
	}

	alert := Alert{
		ID:          id.String(),
		Severity:    OverallSeverity(regs),
		Source:      source,
		Regressions: regs,
		Metrics:     snap,
		CreatedAt:   s.now().UTC(),
	}
	if snap != nil {
		alert.URL = snap.URL
		alert.SessionID = snap.SessionID
	}

	metrics.Alerts.WithLabelValues(string(alert.Severity)).Inc()
	for _, r := range regs {
		metrics.Regressions.WithLabelValues(r.Metric, string(r.Severity)).Inc()
	}

	if err := s.alerts.SaveAlert(ctx, alert); err != nil {
		s.sinkFailed(ctx, "alert_store", err)
	}
	if err := messaging.PublishJSON(ctx, s.publisher, messaging.SubjectPerformanceAlertsCreated, alert); err != nil {
		s.logger.WarnContext(ctx, "failed to publish performance alert", logging.Error(err))
	}

	s.logger.WarnContext(ctx, "performance alert",
		slog.String("alert_id", alert.ID),
		logging.Severity(string(alert.Severity)),
		slog.String("source", string(source)),
		logging.URL(alert.URL),
		slog.Int("regressions", len(regs)),
	)
	return alert, nil
}

func (s *Service) sinkFailed(ctx context.Context, sink string, err error) {
	metrics.SinkErrors.WithLabelValues(sink).Inc()
	s.logger.ErrorContext(ctx, "telemetry sink failed", slog.String("sink", sink), logging.Error(err))
}

// Snapshots returns every stored snapshot in arrival order.
func (s *Service) Snapshots(ctx context.Context) ([]Snapshot, error) {
	return s.snapshots.List(ctx)
}

func (s *Service) ClearSnapshots(ctx context.Context) error {
	return s.snapshots.Clear(ctx)
}

func (s *Service) Alerts(ctx context.Context, limit int) ([]Alert, error) {
	return s.alerts.ListAlerts(ctx, limit)
}

// AddBaseline stamps b when it has no timestamp and stores it.
func (s *Service) AddBaseline(ctx context.Context, b Baseline) (Baseline, error) {
	if b.Timestamp.IsZero() {
		b.Timestamp = s.now().UTC()
	}
	if err := s.baselines.Add(ctx, b); err != nil {
		return Baseline{}, err
	}
	return b, nil
}

func (s *Service) Baselines(ctx context.Context, url string) ([]Baseline, error) {
	return s.baselines.History(ctx, url)
}

func (s *Service) BaselineURLs(ctx context.Context) ([]string, error) {
	return s.baselines.URLs(ctx)
}

// CheckRegression runs the detector without raising an alert.
func (s *Service) CheckRegression(ctx context.Context, current Baseline) (Result, error) {
	return s.detector.Detect(ctx, current)
}
