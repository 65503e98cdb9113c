package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shisei-toshokan/shisei/web/internal/perf"
)

// fakeSource replays scripted entries. With hold set the channel stays open
// after the script so timeouts can be exercised.
type fakeSource struct {
	entries   []Entry
	hold      bool
	resources []ResourceTiming
	heap      float64
	hasHeap   bool
}

func (f *fakeSource) Observe(ctx context.Context) <-chan Entry {
	out := make(chan Entry)
	go func() {
		if !f.hold {
			defer close(out)
		}
		for _, e := range f.entries {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *fakeSource) Resources() []ResourceTiming { return f.resources }
func (f *fakeSource) HeapUsage() (float64, bool)  { return f.heap, f.hasHeap }
func (f *fakeSource) URL() string                 { return "/articles/1" }
func (f *fakeSource) UserAgent() string           { return "test-agent" }

type fakeReporter struct {
	mu       sync.Mutex
	sessions []string
	batches  [][]perf.Snapshot
	err      error
}

func (r *fakeReporter) Report(_ context.Context, sessionID string, snaps []perf.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, sessionID)
	r.batches = append(r.batches, snaps)
	return r.err
}

func allVitals() []Entry {
	return []Entry{
		{Name: VitalTTFB, Value: 120},
		{Name: VitalFCP, Value: 800},
		{Name: VitalLCP, Value: 1500},
		{Name: VitalCLS, Value: 0.02},
		{Name: VitalLCP, Value: 2100},
		{Name: VitalCLS, Value: 0.03},
		{Name: VitalFID, Value: 12},
		// Never read: collection stops once all five are present.
		{Name: VitalTTFB, Value: 9999},
	}
}

func newTestSampler(src TimingSource, rep Reporter, cfg Config) *Sampler {
	if cfg.SessionID == "" {
		cfg.SessionID = "sess-test"
	}
	s := New(src, rep, cfg, nil)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestCollectVitals_AllFive(t *testing.T) {
	s := newTestSampler(&fakeSource{entries: allVitals(), hold: true}, &fakeReporter{}, Config{})

	snap := s.CollectVitals(context.Background())

	require.NotNil(t, snap.LCP)
	require.NotNil(t, snap.CLS)
	require.NotNil(t, snap.FID)
	assert.InDelta(t, 2100, *snap.LCP, 1e-9)
	assert.InDelta(t, 0.05, *snap.CLS, 1e-9)
	assert.InDelta(t, 120, *snap.TTFB, 1e-9)
	assert.InDelta(t, 800, *snap.FCP, 1e-9)
	assert.InDelta(t, 12, *snap.FID, 1e-9)
	assert.Equal(t, "/articles/1", snap.URL)
	assert.Equal(t, "test-agent", snap.UserAgent)
	assert.Equal(t, "sess-test", snap.SessionID)
	assert.Equal(t, int64(1700000000000), snap.Timestamp)
}

func TestCollectVitals_TimeoutReturnsPartial(t *testing.T) {
	src := &fakeSource{entries: []Entry{{Name: VitalTTFB, Value: 90}}, hold: true}
	s := newTestSampler(src, &fakeReporter{}, Config{VitalsTimeout: 50 * time.Millisecond})

	start := time.Now()
	snap := s.CollectVitals(context.Background())

	assert.Less(t, time.Since(start), 5*time.Second)
	require.NotNil(t, snap.TTFB)
	assert.Nil(t, snap.LCP)
	assert.Nil(t, snap.FID)
}

func TestCollectVitals_SourceClosed(t *testing.T) {
	src := &fakeSource{entries: []Entry{{Name: VitalFCP, Value: 300}}}
	s := newTestSampler(src, &fakeReporter{}, Config{VitalsTimeout: time.Hour})

	snap := s.CollectVitals(context.Background())
	require.NotNil(t, snap.FCP)
	assert.Nil(t, snap.TTFB)
}

func TestSample_ResourceAndHeap(t *testing.T) {
	src := &fakeSource{
		resources: []ResourceTiming{
			{Name: "a.js", StartTime: 100, ResponseEnd: 400},
			{Name: "b.css", StartTime: 50, ResponseEnd: 900},
		},
		heap:    4096,
		hasHeap: true,
	}
	s := newTestSampler(src, &fakeReporter{}, Config{})

	snap := s.Sample()
	require.NotNil(t, snap.ResourceLoadTime)
	assert.InDelta(t, 850, *snap.ResourceLoadTime, 1e-9)
	require.NotNil(t, snap.MemoryUsage)
	assert.InDelta(t, 4096, *snap.MemoryUsage, 1e-9)
	assert.Len(t, s.Pending(), 1)
}

func TestSample_NothingMeasured(t *testing.T) {
	s := newTestSampler(&fakeSource{}, &fakeReporter{}, Config{})

	snap := s.Sample()
	assert.Nil(t, snap.ResourceLoadTime)
	assert.Nil(t, snap.MemoryUsage)
}

func TestFlush_SendsOnceAndClears(t *testing.T) {
	rep := &fakeReporter{}
	s := newTestSampler(&fakeSource{}, rep, Config{})
	s.Sample()
	s.Sample()

	s.Flush(context.Background())
	s.Flush(context.Background())

	require.Len(t, rep.batches, 1)
	assert.Len(t, rep.batches[0], 2)
	assert.Equal(t, []string{"sess-test"}, rep.sessions)
	assert.Empty(t, s.Pending())
}

func TestFlush_FailureClearsWithoutRetry(t *testing.T) {
	rep := &fakeReporter{err: errors.New("offline")}
	s := newTestSampler(&fakeSource{}, rep, Config{})
	s.Sample()

	s.Flush(context.Background())
	assert.Empty(t, s.Pending())

	s.Flush(context.Background())
	assert.Len(t, rep.batches, 1)
}

func TestRun_FlushesOnCancel(t *testing.T) {
	rep := &fakeReporter{}
	src := &fakeSource{entries: allVitals(), hold: true}
	s := newTestSampler(src, rep, Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	// Cancellation may race the vitals; either way a vitals snapshot is only
	// flushed when it carries data.
	for _, batch := range rep.batches {
		for _, snap := range batch {
			assert.True(t, snap.HasVitals())
		}
	}
	assert.LessOrEqual(t, len(rep.batches), 1)
}

func TestRun_SamplesOnInterval(t *testing.T) {
	rep := &fakeReporter{}
	src := &fakeSource{hold: true, heap: 1, hasHeap: true}
	s := newTestSampler(src, rep, Config{Interval: 10 * time.Millisecond, VitalsTimeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(s.Pending()) >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	rep.mu.Lock()
	defer rep.mu.Unlock()
	require.Len(t, rep.batches, 1)
	assert.GreaterOrEqual(t, len(rep.batches[0]), 2)
}

func TestNew_Defaults(t *testing.T) {
	s := New(&fakeSource{}, &fakeReporter{}, Config{}, nil)
	assert.NotEmpty(t, s.SessionID())
	assert.Equal(t, DefaultVitalsTimeout, s.cfg.VitalsTimeout)
	assert.Equal(t, DefaultInterval, s.cfg.Interval)
}

func TestResourceLoadTime(t *testing.T) {
	_, ok := ResourceLoadTime(nil)
	assert.False(t, ok)

	v, ok := ResourceLoadTime([]ResourceTiming{{StartTime: 10, ResponseEnd: 30}})
	require.True(t, ok)
	assert.InDelta(t, 20, v, 1e-9)
}
