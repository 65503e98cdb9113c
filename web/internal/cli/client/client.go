// Package client talks to the guard's admin and telemetry endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shisei-toshokan/shisei/web/internal/cspreport"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
)

// APIError is a non-2xx answer from the guard.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// HTTPClient exposes the underlying client for telemetry reporters.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health checks /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) CSPReports(ctx context.Context, limit int) ([]cspreport.StoredReport, error) {
	var resp struct {
		Reports []cspreport.StoredReport `json:"reports"`
	}
	path := "/api/csp-report"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reports, nil
}

func (c *Client) CSPSummary(ctx context.Context) (cspreport.Summary, error) {
	var summary cspreport.Summary
	err := c.do(ctx, http.MethodGet, "/api/csp-report/summary", nil, &summary)
	return summary, err
}

// SendCSPReport posts a report the way a browser would.
func (c *Client) SendCSPReport(ctx context.Context, report cspreport.Report) error {
	return c.do(ctx, http.MethodPost, "/api/csp-report", report, nil)
}

// EventsPage is the security events listing.
type EventsPage struct {
	Events []secmon.SecurityEvent `json:"events"`
	Count  int                    `json:"count"`
	Stats  secmon.Stats           `json:"stats"`
}

func (c *Client) SecurityEvents(ctx context.Context, eventType string) (EventsPage, error) {
	path := "/api/admin/security-events"
	if eventType != "" {
		path += "?type=" + url.QueryEscape(eventType)
	}
	var page EventsPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

func (c *Client) ClearSecurityEvents(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/security-events", nil, nil)
}

func (c *Client) Snapshots(ctx context.Context) ([]perf.Snapshot, error) {
	var resp struct {
		Metrics []perf.Snapshot `json:"metrics"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/performance/metrics", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

func (c *Client) ClearSnapshots(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/performance/metrics", nil, nil)
}

func (c *Client) Alerts(ctx context.Context, limit int) ([]perf.Alert, error) {
	var resp struct {
		Alerts []perf.Alert `json:"alerts"`
	}
	path := "/api/performance/alerts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

func (c *Client) AddBaseline(ctx context.Context, b perf.Baseline) (perf.Baseline, error) {
	var resp struct {
		Baseline perf.Baseline `json:"baseline"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/performance/baselines", b, &resp); err != nil {
		return perf.Baseline{}, err
	}
	return resp.Baseline, nil
}

func (c *Client) Baselines(ctx context.Context, pageURL string) ([]perf.Baseline, error) {
	var resp struct {
		Baselines []perf.Baseline `json:"baselines"`
	}
	path := "/api/performance/baselines?url=" + url.QueryEscape(pageURL)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Baselines, nil
}

func (c *Client) BaselineURLs(ctx context.Context) ([]string, error) {
	var resp struct {
		URLs []string `json:"urls"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/performance/baselines", nil, &resp); err != nil {
		return nil, err
	}
	return resp.URLs, nil
}

func (c *Client) CheckRegression(ctx context.Context, current perf.Baseline) (perf.Result, error) {
	var result perf.Result
	err := c.do(ctx, http.MethodPost, "/api/performance/regressions", current, &result)
	return result, err
}
