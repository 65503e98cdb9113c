// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Interceptor metrics
	PoliciesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_csp_policies_issued_total",
			Help: "Total number of CSP headers attached to responses",
		},
		[]string{"header"},
	)

	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_session_refreshes_total",
			Help: "Total number of auth cookie refresh attempts",
		},
		[]string{"result"},
	)

	// Security monitoring
	SecurityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_security_events_total",
			Help: "Total number of recorded security events",
		},
		[]string{"type"},
	)

	SuspiciousPatterns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_suspicious_pattern_matches_total",
			Help: "Suspicious-request matches by signature",
		},
		[]string{"pattern"},
	)

	// Telemetry endpoints
	CSPReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_csp_reports_total",
			Help: "Total number of CSP violation reports received",
		},
		[]string{"directive"},
	)

	Snapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shisei_web_performance_snapshots_total",
			Help: "Total number of performance snapshots received",
		},
	)

	Alerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_performance_alerts_total",
			Help: "Total number of performance alerts raised",
		},
		[]string{"severity"},
	)

	Regressions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_performance_regressions_total",
			Help: "Regressed metrics detected against stored baselines",
		},
		[]string{"metric", "severity"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_sink_errors_total",
			Help: "Swallowed telemetry persistence failures",
		},
		[]string{"sink"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shisei_web_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"route"},
	)

	// HTTP metrics
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shisei_web_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
