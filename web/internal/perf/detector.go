package perf

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// Comparison names the reference a regression was measured against.
type Comparison string

const (
	CompareLatest  Comparison = "latest"
	CompareAverage Comparison = "average"
)

// Regression is one degraded metric.
type Regression struct {
	Metric        string     `json:"metric"`
	Current       float64    `json:"current"`
	Baseline      float64    `json:"baseline"`
	Change        float64    `json:"change"`
	ChangePercent float64    `json:"changePercent"`
	Severity      Severity   `json:"severity"`
	Comparison    Comparison `json:"comparison,omitempty"`
}

// Result is the outcome of one detection run.
type Result struct {
	URL           string       `json:"url"`
	Regressed     bool         `json:"regressed"`
	Severity      Severity     `json:"severity"`
	Regressions   []Regression `json:"regressions"`
	BaselineCount int          `json:"baselineCount"`
	ComparedAt    time.Time    `json:"comparedAt"`
}

// Detector compares measurements with the stored history for their URL.
type Detector struct {
	baselines BaselineStore
	now       func() time.Time
}

func NewDetector(baselines BaselineStore) *Detector {
	return &Detector{baselines: baselines, now: time.Now}
}

// Detect compares current with the most recent baseline and with the mean of
// all baselines for current.URL. With no history nothing is regressed.
func (d *Detector) Detect(ctx context.Context, current Baseline) (Result, error) {
	result := Result{
		URL:         current.URL,
		Severity:    SeverityNone,
		Regressions: []Regression{},
		ComparedAt:  d.now().UTC(),
	}

	history, err := d.baselines.History(ctx, current.URL)
	if err != nil {
		return result, fmt.Errorf("load baselines for %s: %w", current.URL, err)
	}
	result.BaselineCount = len(history)
	if len(history) == 0 {
		return result, nil
	}

	result.Regressions = Compare(current.Values(), history[len(history)-1].Values(), average(history))
	result.Regressed = len(result.Regressions) > 0
	result.Severity = OverallSeverity(result.Regressions)
	return result, nil
}

// Compare finds regressions of current against the latest and average values.
// A metric regressed in both comparisons is reported once, keeping the larger
// absolute change.
func Compare(current, latest, mean map[string]float64) []Regression {
	found := make(map[string]Regression)

	check := func(reference map[string]float64, comparison Comparison) {
		for metric, cur := range current {
			base, ok := reference[metric]
			if !ok {
				continue
			}
			change := cur - base
			severity := ClassifyChange(metric, change)
			if severity == SeverityNone {
				continue
			}

			r := Regression{
				Metric:        metric,
				Current:       cur,
				Baseline:      base,
				Change:        change,
				ChangePercent: percent(change, base),
				Severity:      severity,
				Comparison:    comparison,
			}
			if prev, seen := found[metric]; !seen || math.Abs(r.Change) > math.Abs(prev.Change) {
				found[metric] = r
			}
		}
	}
	check(latest, CompareLatest)
	check(mean, CompareAverage)

	out := make([]Regression, 0, len(found))
	for _, name := range MetricNames {
		if r, ok := found[name]; ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.rank() > out[j].Severity.rank()
	})
	return out
}

// average computes the per-metric mean over the baselines that measured it.
func average(history []Baseline) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, b := range history {
		for metric, v := range b.Values() {
			sums[metric] += v
			counts[metric]++
		}
	}

	out := make(map[string]float64, len(sums))
	for metric, sum := range sums {
		out[metric] = sum / float64(counts[metric])
	}
	return out
}

func percent(change, base float64) float64 {
	if base == 0 {
		return 0
	}
	return math.Round(change/base*10000) / 100
}
