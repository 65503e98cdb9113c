package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// Snapshot is one client-side measurement. Timestamp is Unix milliseconds.
type Snapshot struct {
	LCP              *float64 `json:"lcp,omitempty"`
	FID              *float64 `json:"fid,omitempty"`
	CLS              *float64 `json:"cls,omitempty"`
	FCP              *float64 `json:"fcp,omitempty"`
	TTFB             *float64 `json:"ttfb,omitempty"`
	PageLoadTime     *float64 `json:"pageLoadTime,omitempty"`
	MemoryUsage      *float64 `json:"memoryUsage,omitempty"`
	ResourceLoadTime *float64 `json:"resourceLoadTime,omitempty"`
	URL              string   `json:"url"`
	UserAgent        string   `json:"userAgent"`
	Timestamp        int64    `json:"timestamp"`
	SessionID        string   `json:"sessionId"`
}

// Time returns Timestamp as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp).UTC()
}

// HasVitals reports whether any Core Web Vital was measured.
func (s Snapshot) HasVitals() bool {
	return s.LCP != nil || s.FID != nil || s.CLS != nil || s.FCP != nil || s.TTFB != nil
}

// ToBaseline converts s into the shape the detector compares.
func (s Snapshot) ToBaseline() Baseline {
	return Baseline{
		URL:       s.URL,
		Timestamp: s.Time(),
		CoreWebVitals: CoreWebVitals{
			LCP:  s.LCP,
			FID:  s.FID,
			CLS:  s.CLS,
			FCP:  s.FCP,
			TTFB: s.TTFB,
		},
		Metrics: LoadMetrics{
			ResourceLoadTime: s.ResourceLoadTime,
		},
	}
}

// SnapshotStore is append-only until Clear.
type SnapshotStore interface {
	Append(ctx context.Context, snaps []Snapshot) error
	List(ctx context.Context) ([]Snapshot, error)
	Clear(ctx context.Context) error
}

// SnapshotSink receives each accepted batch for durable storage. Sink errors
// never reach the client.
type SnapshotSink interface {
	WriteSnapshots(ctx context.Context, sessionID string, snaps []Snapshot) error
}

// MemorySnapshotStore keeps snapshots in process memory.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps []Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (s *MemorySnapshotStore) Append(_ context.Context, snaps []Snapshot) error {
	s.mu.Lock()
	s.snaps = append(s.snaps, snaps...)
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) List(_ context.Context) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, len(s.snaps))
	copy(out, s.snaps)
	return out, nil
}

func (s *MemorySnapshotStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.snaps = nil
	s.mu.Unlock()
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FileSink writes each batch to <dir>/metrics-<session>-<unixmilli>.json.
// Used in development.
type FileSink struct {
	dir string
	now func() time.Time
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

type fileBatch struct {
	SessionID string     `json:"sessionId"`
	Timestamp time.Time  `json:"timestamp"`
	Metrics   []Snapshot `json:"metrics"`
}

func (f *FileSink) WriteSnapshots(_ context.Context, sessionID string, snaps []Snapshot) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	now := f.now()
	data, err := json.MarshalIndent(fileBatch{SessionID: sessionID, Timestamp: now.UTC(), Metrics: snaps}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	session := unsafeFileChars.ReplaceAllString(sessionID, "_")
	name := fmt.Sprintf("metrics-%s-%d.json", session, now.UnixMilli())
	if err := os.WriteFile(filepath.Join(f.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
