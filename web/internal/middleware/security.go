package middleware

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/csp"
	"github.com/shisei-toshokan/shisei/web/internal/metrics"
)

const (
	hstsValue              = "max-age=31536000; includeSubDomains; preload"
	permissionsPolicyValue = "geolocation=(), microphone=(), camera=()"
)

var excludedPrefixes = []string{"/_next/static/", "/_next/image", "/static/"}

var excludedPaths = map[string]bool{
	"/favicon.ico":   true,
	"/robots.txt":    true,
	"/sitemap.xml":   true,
	"/manifest.json": true,
}

var imageExtensions = map[string]bool{
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".webp": true, ".ico": true,
}

// Refresher renews auth cookies and returns the request downstream should see.
type Refresher interface {
	Refresh(w http.ResponseWriter, r *http.Request) *http.Request
}

// Inspector flags suspicious requests. It must never block.
type Inspector interface {
	Inspect(r *http.Request) bool
}

type SecurityConfig struct {
	Policy csp.PolicyConfig
	// Refresher is optional.
	Refresher Refresher
	// Inspector runs in production only. Optional.
	Inspector Inspector
	Logger    *slog.Logger
}

// Excluded reports whether path is a static asset that gets no security
// processing.
func Excluded(p string) bool {
	if excludedPaths[p] {
		return true
	}
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return imageExtensions[strings.ToLower(path.Ext(p))]
}

// SecurityHeaders attaches the CSP and hardening headers to every page
// response, refreshes the session cookies and, in production, runs the
// suspicious-request check.
func SecurityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	headerName := csp.HeaderName(cfg.Policy.ReportOnly)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			var nonce string
			if cfg.Policy.UseNonce {
				nonce = csp.GenerateNonce()
				r = r.WithContext(csp.WithNonce(r.Context(), nonce))
			}

			h := w.Header()
			h.Set(headerName, csp.Build(cfg.Policy, nonce))
			if nonce != "" {
				h.Set(csp.HeaderNonce, nonce)
			}
			h.Set("Strict-Transport-Security", hstsValue)
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Permissions-Policy", permissionsPolicyValue)
			metrics.PoliciesIssued.WithLabelValues(headerName).Inc()

			if cfg.Refresher != nil {
				r = cfg.Refresher.Refresh(w, r)
			}

			if cfg.Policy.IsProd && cfg.Inspector != nil && cfg.Inspector.Inspect(r) {
				logger.WarnContext(r.Context(), "suspicious request",
					logging.Path(r.URL.Path),
					logging.IP(httputil.GetClientIP(r)),
				)
			}

			next.ServeHTTP(w, r)
		})
	}
}
