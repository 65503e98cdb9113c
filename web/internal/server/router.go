package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	commonmw "github.com/shisei-toshokan/shisei/common/middleware"
	"github.com/shisei-toshokan/shisei/web/internal/handlers"
	"github.com/shisei-toshokan/shisei/web/internal/middleware"
	"github.com/shisei-toshokan/shisei/web/internal/ratelimit"
)

// Guard wraps admin-only handlers.
type Guard interface {
	Require(next http.Handler) http.Handler
}

// RouterConfig holds dependencies needed to configure routes
type RouterConfig struct {
	CSPReports     *handlers.CSPReportHandler
	Performance    *handlers.PerformanceHandler
	SecurityEvents *handlers.SecurityEventsHandler

	AdminGuard Guard
	// Limiter throttles the public telemetry endpoints. Nil disables limiting.
	Limiter ratelimit.RateLimiter
	Events  middleware.EventRecorder

	Security middleware.SecurityConfig
	// Renderer serves every path not handled here.
	Renderer http.Handler

	CORSAllowedOrigins []string
	// TrustedProxies may set the client address via forwarding headers.
	TrustedProxies []netip.Prefix
	Logger         *slog.Logger
}

// NewRouter constructs the guard's handler chain:
// Recover, RequestID, ClientIP, SecurityHeaders, CSRF, Metrics, then the routes.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoOpRateLimiter{}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	})

	telemetry := func(route string, h http.HandlerFunc) http.Handler {
		return corsHandler.Handler(middleware.RateLimit(limiter, route, cfg.Events, cfg.Logger)(h))
	}
	preflight := corsHandler.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	admin := func(h http.HandlerFunc) http.Handler {
		return cfg.AdminGuard.Require(h)
	}

	// CSP violation reports
	mux.Handle("POST /api/csp-report", telemetry("csp_report", cfg.CSPReports.Receive))
	mux.Handle("OPTIONS /api/csp-report", preflight)
	mux.Handle("GET /api/csp-report", admin(cfg.CSPReports.List))
	mux.Handle("GET /api/csp-report/summary", admin(cfg.CSPReports.Summary))

	// Performance telemetry
	mux.Handle("POST /api/performance/metrics", telemetry("performance_metrics", cfg.Performance.PostMetrics))
	mux.Handle("OPTIONS /api/performance/metrics", preflight)
	mux.Handle("GET /api/performance/metrics", admin(cfg.Performance.ListMetrics))
	mux.Handle("DELETE /api/performance/metrics", admin(cfg.Performance.ClearMetrics))
	mux.Handle("POST /api/performance/alert", telemetry("performance_alert", cfg.Performance.PostAlert))
	mux.Handle("OPTIONS /api/performance/alert", preflight)
	mux.Handle("GET /api/performance/alerts", admin(cfg.Performance.ListAlerts))
	mux.Handle("POST /api/performance/baselines", admin(cfg.Performance.AddBaseline))
	mux.Handle("GET /api/performance/baselines", admin(cfg.Performance.Baselines))
	mux.Handle("POST /api/performance/regressions", admin(cfg.Performance.CheckRegression))

	// Security events (admin)
	mux.Handle("GET /api/admin/security-events", admin(cfg.SecurityEvents.List))
	mux.Handle("DELETE /api/admin/security-events", admin(cfg.SecurityEvents.Clear))

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"web"}`)
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	// Page renderer (must be last)
	if cfg.Renderer != nil {
		mux.Handle("/", cfg.Renderer)
	}

	var h http.Handler = middleware.Metrics(mux)
	h = middleware.CSRF(cfg.Logger)(h)
	h = middleware.SecurityHeaders(cfg.Security)(h)
	h = commonmw.ClientIP(cfg.TrustedProxies)(h)
	h = commonmw.RequestID(h)
	return commonmw.Recover(h)
}
