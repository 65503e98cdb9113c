// Package perf stores performance baselines and snapshots, detects
// regressions against them and raises alerts.
package perf

import "time"

// Scores are Lighthouse category scores on a 0-100 scale.
type Scores struct {
	Performance   *float64 `json:"performance,omitempty"`
	Accessibility *float64 `json:"accessibility,omitempty"`
	BestPractices *float64 `json:"bestPractices,omitempty"`
	SEO           *float64 `json:"seo,omitempty"`
}

// CoreWebVitals holds the five vitals. Timings are milliseconds, CLS is unitless.
type CoreWebVitals struct {
	LCP  *float64 `json:"lcp,omitempty"`
	FID  *float64 `json:"fid,omitempty"`
	CLS  *float64 `json:"cls,omitempty"`
	FCP  *float64 `json:"fcp,omitempty"`
	TTFB *float64 `json:"ttfb,omitempty"`
}

// LoadMetrics are additional lab timings in milliseconds.
type LoadMetrics struct {
	SpeedIndex        *float64 `json:"speedIndex,omitempty"`
	TotalBlockingTime *float64 `json:"totalBlockingTime,omitempty"`
	ResourceLoadTime  *float64 `json:"resourceLoadTime,omitempty"`
}

// Baseline is one recorded measurement of a URL. Nil fields were not measured
// and take no part in comparisons.
type Baseline struct {
	URL           string        `json:"url"`
	Timestamp     time.Time     `json:"timestamp"`
	Scores        Scores        `json:"scores"`
	CoreWebVitals CoreWebVitals `json:"coreWebVitals"`
	Metrics       LoadMetrics   `json:"metrics"`
}

// Values flattens the measured fields into metric-name keyed values.
func (b Baseline) Values() map[string]float64 {
	out := make(map[string]float64, len(MetricNames))
	set := func(name string, v *float64) {
		if v != nil {
			out[name] = *v
		}
	}
	set(MetricScorePerformance, b.Scores.Performance)
	set(MetricScoreAccessibility, b.Scores.Accessibility)
	set(MetricScoreBestPractices, b.Scores.BestPractices)
	set(MetricScoreSEO, b.Scores.SEO)
	set(MetricLCP, b.CoreWebVitals.LCP)
	set(MetricFID, b.CoreWebVitals.FID)
	set(MetricCLS, b.CoreWebVitals.CLS)
	set(MetricFCP, b.CoreWebVitals.FCP)
	set(MetricTTFB, b.CoreWebVitals.TTFB)
	set(MetricSpeedIndex, b.Metrics.SpeedIndex)
	set(MetricTotalBlockingTime, b.Metrics.TotalBlockingTime)
	set(MetricResourceLoadTime, b.Metrics.ResourceLoadTime)
	return out
}

// Float returns a pointer to v, for building baselines in code.
func Float(v float64) *float64 {
	return &v
}
