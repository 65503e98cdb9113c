// Package seeder fabricates CSP reports and performance snapshots for
// exercising a development guard.
package seeder

import (
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/shisei-toshokan/shisei/web/internal/cspreport"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
)

var directives = []string{
	"script-src-elem", "style-src-elem", "img-src", "connect-src", "font-src", "frame-src",
}

var pages = []string{"/", "/blog", "/about", "/catalog", "/contact"}

// Seed makes the generated data reproducible.
func Seed(seed int64) {
	gofakeit.Seed(seed)
}

// Reports returns n legacy-format violation reports against origin.
func Reports(n int, origin string) []cspreport.Report {
	out := make([]cspreport.Report, 0, n)
	for i := 0; i < n; i++ {
		directive := gofakeit.RandomString(directives)
		out = append(out, cspreport.Report{CSPReport: cspreport.Violation{
			DocumentURI:        origin + gofakeit.RandomString(pages),
			Referrer:           "",
			ViolatedDirective:  directive,
			EffectiveDirective: directive,
			OriginalPolicy:     "default-src 'self'; report-uri /api/csp-report",
			Disposition:        "enforce",
			BlockedURI:         fmt.Sprintf("https://%s/%s.js", gofakeit.DomainName(), gofakeit.Word()),
			LineNumber:         gofakeit.Number(1, 400),
			ColumnNumber:       gofakeit.Number(1, 120),
			StatusCode:         200,
		}})
	}
	return out
}

// Snapshots returns n snapshots for one session spread over the last hour.
// Values sit around healthy medians with occasional slow outliers.
func Snapshots(n int, sessionID string) []perf.Snapshot {
	ua := gofakeit.UserAgent()
	start := time.Now().Add(-time.Hour)
	step := time.Hour / time.Duration(max(n, 1))

	out := make([]perf.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		slow := gofakeit.Number(1, 10) == 1
		factor := 1.0
		if slow {
			factor = 2.5
		}
		out = append(out, perf.Snapshot{
			LCP:              round(gofakeit.Float64Range(1500, 2500) * factor),
			FID:              round(gofakeit.Float64Range(20, 90) * factor),
			CLS:              roundTo(gofakeit.Float64Range(0.01, 0.08)*factor, 3),
			FCP:              round(gofakeit.Float64Range(800, 1600) * factor),
			TTFB:             round(gofakeit.Float64Range(100, 500) * factor),
			ResourceLoadTime: round(gofakeit.Float64Range(400, 1800) * factor),
			URL:              gofakeit.RandomString(pages),
			UserAgent:        ua,
			Timestamp:        start.Add(time.Duration(i) * step).UnixMilli(),
			SessionID:        sessionID,
		})
	}
	return out
}

func round(v float64) *float64 {
	return roundTo(v, 0)
}

func roundTo(v float64, places int) *float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	return &r
}
