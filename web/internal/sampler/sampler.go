package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
)

const (
	DefaultVitalsTimeout = 10 * time.Second
	DefaultInterval      = 30 * time.Second
	DefaultFlushTimeout  = 5 * time.Second
)

// Reporter delivers a batch of snapshots.
type Reporter interface {
	Report(ctx context.Context, sessionID string, snaps []perf.Snapshot) error
}

type Config struct {
	SessionID     string
	VitalsTimeout time.Duration
	Interval      time.Duration
	FlushTimeout  time.Duration
}

// Sampler accumulates snapshots for one page session.
type Sampler struct {
	source   TimingSource
	reporter Reporter
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	mu      sync.Mutex
	pending []perf.Snapshot
}

func New(source TimingSource, reporter Reporter, cfg Config, logger *slog.Logger) *Sampler {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.VitalsTimeout <= 0 {
		cfg.VitalsTimeout = DefaultVitalsTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		source:   source,
		reporter: reporter,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *Sampler) SessionID() string {
	return s.cfg.SessionID
}

// CollectVitals merges observed entries until all five vitals are present,
// the source closes, or the vitals timeout elapses. It always returns a
// snapshot, possibly with no vitals set.
func (s *Sampler) CollectVitals(ctx context.Context) perf.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.VitalsTimeout)
	defer cancel()

	snap := s.newSnapshot()
	entries := s.source.Observe(ctx)
	for !complete(snap) {
		select {
		case <-ctx.Done():
			s.logger.Debug("vitals collection timed out", logging.SessionID(s.cfg.SessionID))
			return snap
		case e, ok := <-entries:
			if !ok {
				return snap
			}
			apply(&snap, e)
		}
	}
	return snap
}

func apply(snap *perf.Snapshot, e Entry) {
	v := e.Value
	switch e.Name {
	case VitalLCP:
		snap.LCP = &v
	case VitalCLS:
		if snap.CLS != nil {
			v += *snap.CLS
		}
		snap.CLS = &v
	case VitalFID:
		if snap.FID == nil {
			snap.FID = &v
		}
	case VitalFCP:
		if snap.FCP == nil {
			snap.FCP = &v
		}
	case VitalTTFB:
		if snap.TTFB == nil {
			snap.TTFB = &v
		}
	}
}

func complete(snap perf.Snapshot) bool {
	return snap.LCP != nil && snap.FID != nil && snap.CLS != nil && snap.FCP != nil && snap.TTFB != nil
}

func (s *Sampler) newSnapshot() perf.Snapshot {
	return perf.Snapshot{
		URL:       s.source.URL(),
		UserAgent: s.source.UserAgent(),
		Timestamp: s.now().UnixMilli(),
		SessionID: s.cfg.SessionID,
	}
}

// Sample appends a snapshot carrying resource load time and heap usage.
func (s *Sampler) Sample() perf.Snapshot {
	snap := s.newSnapshot()
	if v, ok := ResourceLoadTime(s.source.Resources()); ok {
		snap.ResourceLoadTime = &v
	}
	if v, ok := s.source.HeapUsage(); ok {
		snap.MemoryUsage = &v
	}
	s.add(snap)
	return snap
}

func (s *Sampler) add(snap perf.Snapshot) {
	s.mu.Lock()
	s.pending = append(s.pending, snap)
	s.mu.Unlock()
}

// Pending returns a copy of the snapshots not yet flushed.
func (s *Sampler) Pending() []perf.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]perf.Snapshot(nil), s.pending...)
}

// Flush sends pending snapshots once and clears them whether or not delivery
// succeeded. Failures are logged.
func (s *Sampler) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := s.reporter.Report(ctx, s.cfg.SessionID, batch); err != nil {
		s.logger.Warn("failed to send performance metrics",
			logging.SessionID(s.cfg.SessionID),
			slog.Int("count", len(batch)),
			logging.Error(err),
		)
	}
}

// Run collects vitals, samples on every interval and flushes when ctx is
// cancelled, which stands in for page unload.
func (s *Sampler) Run(ctx context.Context) {
	vitals := make(chan perf.Snapshot, 1)
	go func() { vitals <- s.CollectVitals(ctx) }()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case snap := <-vitals:
			s.addVitals(snap)
			vitals = nil
		case <-ticker.C:
			s.Sample()
		case <-ctx.Done():
			if vitals != nil {
				s.addVitals(<-vitals)
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FlushTimeout)
			s.Flush(flushCtx)
			cancel()
			return
		}
	}
}

func (s *Sampler) addVitals(snap perf.Snapshot) {
	if snap.HasVitals() {
		s.add(snap)
	}
}
