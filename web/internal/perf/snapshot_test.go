package perf

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_ToBaseline(t *testing.T) {
	snap := Snapshot{
		URL:              "/docs",
		LCP:              Float(2100),
		CLS:              Float(0.02),
		PageLoadTime:     Float(3000),
		ResourceLoadTime: Float(800),
		Timestamp:        1700000000000,
	}

	b := snap.ToBaseline()
	assert.Equal(t, "/docs", b.URL)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), b.Timestamp)

	values := b.Values()
	assert.Equal(t, map[string]float64{
		MetricLCP:              2100,
		MetricCLS:              0.02,
		MetricResourceLoadTime: 800,
	}, values)
}

func TestSnapshot_HasVitals(t *testing.T) {
	assert.False(t, Snapshot{PageLoadTime: Float(1)}.HasVitals())
	assert.True(t, Snapshot{TTFB: Float(0)}.HasVitals())
}

func TestSnapshot_JSONOmitsUnmeasured(t *testing.T) {
	data, err := json.Marshal(Snapshot{URL: "/", LCP: Float(1200), Timestamp: 5})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "lcp")
	assert.NotContains(t, raw, "fid")
	assert.NotContains(t, raw, "cls")
}

func TestMemorySnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()

	require.NoError(t, store.Append(ctx, []Snapshot{{URL: "/a"}, {URL: "/b"}}))
	require.NoError(t, store.Append(ctx, []Snapshot{{URL: "/c"}}))

	snaps, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "/c", snaps[2].URL)

	// List returns a copy.
	snaps[0].URL = "mutated"
	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/a", again[0].URL)

	require.NoError(t, store.Clear(ctx))
	snaps, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestFileSink_WritesBatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "performance-data")
	sink := NewFileSink(dir)
	sink.now = func() time.Time { return time.UnixMilli(1700000000123) }

	snaps := []Snapshot{{URL: "/", LCP: Float(1000), SessionID: "sess/1"}}
	require.NoError(t, sink.WriteSnapshots(context.Background(), "sess/1", snaps))

	path := filepath.Join(dir, "metrics-sess_1-1700000000123.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var batch fileBatch
	require.NoError(t, json.Unmarshal(data, &batch))
	assert.Equal(t, "sess/1", batch.SessionID)
	require.Len(t, batch.Metrics, 1)
	assert.InDelta(t, 1000, *batch.Metrics[0].LCP, 1e-9)
}

func TestFileSink_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	err := NewFileSink(filepath.Join(file, "sub")).WriteSnapshots(context.Background(), "s", nil)
	assert.Error(t, err)
}
