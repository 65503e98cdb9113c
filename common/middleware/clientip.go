package middleware

import (
	"net/http"
	"net/netip"

	"github.com/shisei-toshokan/shisei/common/httputil"
)

// ClientIP resolves the caller's address once per request so that
// httputil.GetClientIP returns it downstream. Forwarding headers count only
// when the connection comes from one of trusted.
func ClientIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httputil.ResolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(httputil.WithClientIP(r.Context(), ip)))
		})
	}
}
