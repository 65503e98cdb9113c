// Package proxy forwards page requests to the upstream renderer.
package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/csp"
)

// Headers that apply to a single connection and are never forwarded.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

type Proxy struct {
	targetURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewProxy(targetURL string, timeout time.Duration, logger *slog.Logger) *Proxy {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		targetURL: strings.TrimRight(targetURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirects go back to the browser untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Handler forwards the request. Response headers already set by the guard
// (CSP, HSTS, refreshed cookies) take precedence over the upstream's.
func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetURL := p.targetURL + r.URL.Path
		if r.URL.RawQuery != "" {
			targetURL += "?" + r.URL.RawQuery
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, r.Body)
		if err != nil {
			p.logger.ErrorContext(r.Context(), "proxy request creation failed", logging.Error(err))
			httputil.WriteInternalError(w)
			return
		}

		proxyReq.Header = r.Header.Clone()
		for _, h := range hopHeaders {
			proxyReq.Header.Del(h)
		}
		proxyReq.Header.Del(csp.HeaderNonce)
		if nonce := csp.NonceFromContext(r.Context()); nonce != "" {
			proxyReq.Header.Set(csp.HeaderNonce, nonce)
		}
		proxyReq.Header.Set("X-Forwarded-For", httputil.GetClientIP(r))
		proxyReq.Header.Set("X-Forwarded-Host", r.Host)
		proxyReq.ContentLength = r.ContentLength

		resp, err := p.httpClient.Do(proxyReq)
		if err != nil {
			p.logger.WarnContext(r.Context(), "upstream request failed",
				logging.Path(r.URL.Path), logging.Error(err))
			httputil.WriteError(w, http.StatusBadGateway, "Upstream unavailable")
			return
		}
		defer resp.Body.Close()

		owned := w.Header().Clone()
		for key, values := range resp.Header {
			if _, ok := owned[key]; ok && key != "Set-Cookie" {
				continue
			}
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		for _, h := range hopHeaders {
			w.Header().Del(h)
		}

		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			p.logger.DebugContext(r.Context(), "proxy copy interrupted", logging.Error(err))
		}
	})
}
