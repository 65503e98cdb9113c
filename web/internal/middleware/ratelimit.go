package middleware

import (
	"log/slog"
	"net/http"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/metrics"
	"github.com/shisei-toshokan/shisei/web/internal/ratelimit"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
)

// EventRecorder records a security event for a request.
type EventRecorder interface {
	RecordRequest(r *http.Request, eventType secmon.EventType, details map[string]any) secmon.SecurityEvent
}

// RateLimit throttles requests per client IP under route. Limiter errors fail
// open. Rejections answer 429 and are recorded as rate_limit_exceeded.
func RateLimit(limiter ratelimit.RateLimiter, route string, events EventRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httputil.GetClientIP(r)

			allowed, err := limiter.Allow(r.Context(), route+":"+ip)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitHits.WithLabelValues(route).Inc()
				if events != nil {
					events.RecordRequest(r, secmon.RateLimitExceeded, map[string]any{"route": route})
				}
				httputil.WriteError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
