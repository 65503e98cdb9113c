// Package cspreport accepts browser CSP violation reports and stores them for
// later inspection.
package cspreport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Violation mirrors the body of a browser "csp-report" object.
type Violation struct {
	DocumentURI        string `json:"document-uri,omitempty"`
	Referrer           string `json:"referrer,omitempty"`
	ViolatedDirective  string `json:"violated-directive,omitempty"`
	EffectiveDirective string `json:"effective-directive,omitempty"`
	OriginalPolicy     string `json:"original-policy,omitempty"`
	Disposition        string `json:"disposition,omitempty"`
	BlockedURI         string `json:"blocked-uri,omitempty"`
	LineNumber         int    `json:"line-number,omitempty"`
	ColumnNumber       int    `json:"column-number,omitempty"`
	SourceFile         string `json:"source-file,omitempty"`
	StatusCode         int    `json:"status-code,omitempty"`
	ScriptSample       string `json:"script-sample,omitempty"`
}

// Report is the envelope browsers POST to a report-uri.
type Report struct {
	CSPReport Violation `json:"csp-report"`
}

// Directive returns the effective directive, falling back to the first token
// of the violated directive.
func (r Report) Directive() string {
	if r.CSPReport.EffectiveDirective != "" {
		return r.CSPReport.EffectiveDirective
	}
	if fields := strings.Fields(r.CSPReport.ViolatedDirective); len(fields) > 0 {
		return fields[0]
	}
	return "unknown"
}

// StoredReport is a persisted report as returned by the listing endpoint.
type StoredReport struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"userAgent,omitempty"`
	Report    Report    `json:"report"`
}

// Store persists reports. List returns newest first; limit <= 0 means no limit.
type Store interface {
	Save(ctx context.Context, report StoredReport) error
	List(ctx context.Context, limit int) ([]StoredReport, error)
}

var ErrMalformedReport = errors.New("malformed CSP report")

// NewStoredReport stamps r with a timestamp and a unique file name of the form
// csp-report-<unixmilli>-<suffix>.json.
func NewStoredReport(now time.Time, userAgent string, r Report) StoredReport {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return StoredReport{
		Filename:  fmt.Sprintf("csp-report-%d-%s.json", now.UnixMilli(), suffix),
		Timestamp: now.UTC(),
		UserAgent: userAgent,
		Report:    r,
	}
}

// reportingAPIEntry is one element of an application/reports+json body.
type reportingAPIEntry struct {
	Type string `json:"type"`
	Body struct {
		DocumentURL        string `json:"documentURL"`
		Referrer           string `json:"referrer"`
		BlockedURL         string `json:"blockedURL"`
		EffectiveDirective string `json:"effectiveDirective"`
		OriginalPolicy     string `json:"originalPolicy"`
		SourceFile         string `json:"sourceFile"`
		Sample             string `json:"sample"`
		Disposition        string `json:"disposition"`
		StatusCode         int    `json:"statusCode"`
		LineNumber         int    `json:"lineNumber"`
		ColumnNumber       int    `json:"columnNumber"`
	} `json:"body"`
}

// Parse decodes either the legacy {"csp-report": {...}} envelope or a
// Reporting API array. Non-CSP entries in an array are ignored.
func Parse(data []byte) ([]Report, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrMalformedReport
	}

	if trimmed[0] == '[' {
		var entries []reportingAPIEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}
		reports := make([]Report, 0, len(entries))
		for _, e := range entries {
			if e.Type != "csp-violation" {
				continue
			}
			reports = append(reports, Report{CSPReport: Violation{
				DocumentURI:        e.Body.DocumentURL,
				Referrer:           e.Body.Referrer,
				ViolatedDirective:  e.Body.EffectiveDirective,
				EffectiveDirective: e.Body.EffectiveDirective,
				OriginalPolicy:     e.Body.OriginalPolicy,
				Disposition:        e.Body.Disposition,
				BlockedURI:         e.Body.BlockedURL,
				LineNumber:         e.Body.LineNumber,
				ColumnNumber:       e.Body.ColumnNumber,
				SourceFile:         e.Body.SourceFile,
				StatusCode:         e.Body.StatusCode,
				ScriptSample:       e.Body.Sample,
			}})
		}
		if len(reports) == 0 {
			return nil, ErrMalformedReport
		}
		return reports, nil
	}

	var r Report
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	return []Report{r}, nil
}
