package perf

// Metric names used in regressions and alerts.
const (
	MetricScorePerformance   = "score_performance"
	MetricScoreAccessibility = "score_accessibility"
	MetricScoreBestPractices = "score_best_practices"
	MetricScoreSEO           = "score_seo"
	MetricLCP                = "cwv_lcp"
	MetricFID                = "cwv_fid"
	MetricCLS                = "cwv_cls"
	MetricFCP                = "cwv_fcp"
	MetricTTFB               = "cwv_ttfb"
	MetricSpeedIndex         = "metric_speed_index"
	MetricTotalBlockingTime  = "metric_total_blocking_time"
	MetricResourceLoadTime   = "metric_resource_load_time"
)

// MetricNames fixes the order regressions are reported in.
var MetricNames = []string{
	MetricScorePerformance, MetricScoreAccessibility, MetricScoreBestPractices, MetricScoreSEO,
	MetricLCP, MetricFID, MetricCLS, MetricFCP, MetricTTFB,
	MetricSpeedIndex, MetricTotalBlockingTime, MetricResourceLoadTime,
}

// Severity ranks a regression or an alert.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Threshold holds the degradation needed to reach each band.
type Threshold struct {
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
	// LowerIsWorse marks score metrics, where a decrease is a regression.
	LowerIsWorse bool `json:"lowerIsWorse"`
	// Tolerance absorbs float error on fractional metrics.
	Tolerance float64 `json:"-"`
}

var scoreThreshold = Threshold{Medium: 5, High: 10, Critical: 20, LowerIsWorse: true}

// Thresholds is the fixed per-metric table.
var Thresholds = map[string]Threshold{
	MetricScorePerformance:   scoreThreshold,
	MetricScoreAccessibility: scoreThreshold,
	MetricScoreBestPractices: scoreThreshold,
	MetricScoreSEO:           scoreThreshold,
	MetricLCP:                {Medium: 500, High: 1000, Critical: 2000},
	MetricFID:                {Medium: 50, High: 100, Critical: 200},
	MetricCLS:                {Medium: 0.05, High: 0.1, Critical: 0.25, Tolerance: 1e-9},
	MetricFCP:                {Medium: 300, High: 600, Critical: 1200},
	MetricTTFB:               {Medium: 200, High: 400, Critical: 800},
	MetricSpeedIndex:         {Medium: 500, High: 1000, Critical: 2000},
	MetricTotalBlockingTime:  {Medium: 100, High: 250, Critical: 500},
	MetricResourceLoadTime:   {Medium: 500, High: 1000, Critical: 2000},
}

// ClassifyChange maps a signed change (current - baseline) to a band.
// Improvements and unknown metrics are SeverityNone. Band edges are inclusive.
func ClassifyChange(metric string, change float64) Severity {
	t, ok := Thresholds[metric]
	if !ok {
		return SeverityNone
	}

	degradation := change
	if t.LowerIsWorse {
		degradation = -change
	}
	degradation += t.Tolerance

	switch {
	case degradation >= t.Critical:
		return SeverityCritical
	case degradation >= t.High:
		return SeverityHigh
	case degradation >= t.Medium:
		return SeverityMedium
	default:
		return SeverityNone
	}
}

// OverallSeverity folds per-metric severities into one:
// critical if any critical or two or more high; high if any high or three or
// more medium; medium for two medium; low for anything else non-empty.
func OverallSeverity(regressions []Regression) Severity {
	if len(regressions) == 0 {
		return SeverityNone
	}

	var critical, high, medium int
	for _, r := range regressions {
		switch r.Severity {
		case SeverityCritical:
			critical++
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		}
	}

	switch {
	case critical > 0 || high >= 2:
		return SeverityCritical
	case high > 0 || medium >= 3:
		return SeverityHigh
	case medium == 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
