// Package sampler collects client-side performance snapshots from a timing
// source and flushes them to the metrics endpoint.
package sampler

import "context"

// Vital names carried by Entry.
const (
	VitalLCP  = "lcp"
	VitalFID  = "fid"
	VitalCLS  = "cls"
	VitalFCP  = "fcp"
	VitalTTFB = "ttfb"
)

// Entry is one observed timing. CLS entries are layout-shift scores and
// accumulate; the latest LCP candidate wins; other vitals keep their first value.
type Entry struct {
	Name  string
	Value float64
}

// ResourceTiming is a single fetched resource. Times are milliseconds relative
// to navigation start.
type ResourceTiming struct {
	Name        string
	StartTime   float64
	ResponseEnd float64
}

// TimingSource abstracts the environment the sampler observes.
type TimingSource interface {
	// Observe streams entries until ctx is done or the source has nothing
	// more to report, in which case the channel is closed.
	Observe(ctx context.Context) <-chan Entry
	Resources() []ResourceTiming
	// HeapUsage reports used heap in bytes when the environment exposes it.
	HeapUsage() (float64, bool)
	URL() string
	UserAgent() string
}

// ResourceLoadTime is the span from the first resource start to the last
// response end. It returns false with no resources.
func ResourceLoadTime(resources []ResourceTiming) (float64, bool) {
	if len(resources) == 0 {
		return 0, false
	}

	start, end := resources[0].StartTime, resources[0].ResponseEnd
	for _, r := range resources[1:] {
		start = min(start, r.StartTime)
		end = max(end, r.ResponseEnd)
	}
	return end - start, true
}
