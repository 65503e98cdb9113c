package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"runtime"
	"sync"
	"time"

	"github.com/shisei-toshokan/shisei/web/internal/perf"
)

// MetricsPath is where HTTPReporter posts batches.
const MetricsPath = "/api/performance/metrics"

// HTTPReporter posts snapshot batches to the metrics endpoint.
type HTTPReporter struct {
	baseURL string
	client  *http.Client
}

func NewHTTPReporter(baseURL string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPReporter{baseURL: baseURL, client: client}
}

type metricsBatch struct {
	Metrics   []perf.Snapshot `json:"metrics"`
	SessionID string          `json:"sessionId"`
}

func (r *HTTPReporter) Report(ctx context.Context, sessionID string, snaps []perf.Snapshot) error {
	body, err := json.Marshal(metricsBatch{Metrics: snaps, SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+MetricsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("metrics endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// HTTPProbe is a TimingSource backed by a single server-side page fetch.
// It can only observe TTFB; the document fetch is its one resource and the
// heap is this process's.
type HTTPProbe struct {
	url       string
	userAgent string
	client    *http.Client

	mu        sync.Mutex
	resources []ResourceTiming
}

func NewHTTPProbe(url, userAgent string, client *http.Client) *HTTPProbe {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = "shisei-probe/1.0"
	}
	return &HTTPProbe{url: url, userAgent: userAgent, client: client}
}

func (p *HTTPProbe) URL() string       { return p.url }
func (p *HTTPProbe) UserAgent() string { return p.userAgent }

func (p *HTTPProbe) Observe(ctx context.Context) <-chan Entry {
	out := make(chan Entry, 1)
	go func() {
		defer close(out)
		ttfb, total, err := p.fetch(ctx)
		if err != nil {
			return
		}

		p.mu.Lock()
		p.resources = []ResourceTiming{{Name: p.url, StartTime: 0, ResponseEnd: ms(total)}}
		p.mu.Unlock()

		select {
		case out <- Entry{Name: VitalTTFB, Value: ms(ttfb)}:
		case <-ctx.Done():
		}
	}()
	return out
}

func (p *HTTPProbe) fetch(ctx context.Context) (ttfb, total time.Duration, err error) {
	start := time.Now()
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { ttfb = time.Since(start) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, p.url, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, 0, err
	}
	return ttfb, time.Since(start), nil
}

func (p *HTTPProbe) Resources() []ResourceTiming {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ResourceTiming(nil), p.resources...)
}

func (p *HTTPProbe) HeapUsage() (float64, bool) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc), true
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
