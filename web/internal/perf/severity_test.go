package perf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		change float64
		want   Severity
	}{
		{"lcp below medium", MetricLCP, 499, SeverityNone},
		{"lcp medium edge", MetricLCP, 500, SeverityMedium},
		{"lcp just under medium", MetricLCP, 499.9999999, SeverityNone},
		{"cls just under medium", MetricCLS, 0.0499, SeverityNone},
		{"lcp high edge", MetricLCP, 1000, SeverityHigh},
		{"lcp critical", MetricLCP, 2500, SeverityCritical},
		{"lcp improvement", MetricLCP, -1500, SeverityNone},
		{"cls float edge", MetricCLS, 0.15 - 0.10, SeverityMedium},
		{"cls critical", MetricCLS, 0.3, SeverityCritical},
		{"ttfb high", MetricTTFB, 450, SeverityHigh},
		{"score drop", MetricScorePerformance, -12, SeverityHigh},
		{"score drop critical", MetricScoreSEO, -20, SeverityCritical},
		{"score gain", MetricScorePerformance, 15, SeverityNone},
		{"tbt medium", MetricTotalBlockingTime, 120, SeverityMedium},
		{"unknown metric", "cwv_inp", 9999, SeverityNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyChange(tt.metric, tt.change))
		})
	}
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Severity("warning").Valid())
	assert.False(t, Severity("").Valid())
}

func regs(severities ...Severity) []Regression {
	out := make([]Regression, len(severities))
	for i, s := range severities {
		out[i] = Regression{Metric: MetricLCP, Severity: s}
	}
	return out
}

func TestOverallSeverity(t *testing.T) {
	tests := []struct {
		name string
		in   []Regression
		want Severity
	}{
		{"empty", nil, SeverityNone},
		{"one critical", regs(SeverityCritical), SeverityCritical},
		{"two high", regs(SeverityHigh, SeverityHigh), SeverityCritical},
		{"one high", regs(SeverityHigh), SeverityHigh},
		{"one high one medium", regs(SeverityHigh, SeverityMedium), SeverityHigh},
		{"three medium", regs(SeverityMedium, SeverityMedium, SeverityMedium), SeverityHigh},
		{"two medium", regs(SeverityMedium, SeverityMedium), SeverityMedium},
		{"one medium", regs(SeverityMedium), SeverityLow},
		{"unclassified", regs(""), SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallSeverity(tt.in))
		})
	}
}
