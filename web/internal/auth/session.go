package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/metrics"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	refreshTokenMaxAge = 7 * 24 * 60 * 60
)

// TokenRefresher is the part of Client the session refresher needs.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// SessionRefresher keeps auth cookies alive on page requests.
type SessionRefresher struct {
	client       TokenRefresher
	verifier     *TokenVerifier
	cookieDomain string
	cookieSecure bool
	logger       *slog.Logger
}

// NewSessionRefresher builds a refresher. With a nil verifier only a missing
// access cookie triggers a refresh.
func NewSessionRefresher(client TokenRefresher, verifier *TokenVerifier, cookieDomain string, cookieSecure bool, logger *slog.Logger) *SessionRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRefresher{
		client:       client,
		verifier:     verifier,
		cookieDomain: cookieDomain,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// Refresh exchanges the refresh cookie for new tokens when the access token
// is missing or no longer valid. The new cookies are set on w and on the
// returned request so downstream handlers see them. On any failure r is
// returned unchanged.
func (s *SessionRefresher) Refresh(w http.ResponseWriter, r *http.Request) *http.Request {
	refresh, err := r.Cookie(RefreshTokenCookie)
	if err != nil || refresh.Value == "" {
		return r
	}
	if s.accessValid(r) {
		return r
	}

	tokens, err := s.client.RefreshToken(r.Context(), refresh.Value)
	if err != nil {
		metrics.SessionRefreshes.WithLabelValues("failed").Inc()
		s.logger.WarnContext(r.Context(), "session refresh failed",
			logging.Path(r.URL.Path), logging.Error(err))
		return r
	}
	metrics.SessionRefreshes.WithLabelValues("refreshed").Inc()

	s.setCookie(w, AccessTokenCookie, tokens.AccessToken, tokens.ExpiresIn)
	refreshValue := refresh.Value
	if tokens.RefreshToken != "" {
		refreshValue = tokens.RefreshToken
		s.setCookie(w, RefreshTokenCookie, refreshValue, refreshTokenMaxAge)
	}

	return withCookies(r, map[string]string{
		AccessTokenCookie:  tokens.AccessToken,
		RefreshTokenCookie: refreshValue,
	})
}

func (s *SessionRefresher) accessValid(r *http.Request) bool {
	access, err := r.Cookie(AccessTokenCookie)
	if err != nil || access.Value == "" {
		return false
	}
	if s.verifier == nil {
		return true
	}
	_, err = s.verifier.Verify(access.Value)
	return err == nil
}

func (s *SessionRefresher) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.cookieDomain,
		MaxAge:   maxAge,
		Secure:   s.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// withCookies returns a clone of r whose Cookie header has the given values
// replaced or added.
func withCookies(r *http.Request, values map[string]string) *http.Request {
	clone := r.Clone(r.Context())
	clone.Header.Del("Cookie")
	for _, c := range r.Cookies() {
		if _, replaced := values[c.Name]; replaced {
			continue
		}
		clone.AddCookie(c)
	}
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		if v, ok := values[name]; ok {
			clone.AddCookie(&http.Cookie{Name: name, Value: v})
		}
	}
	return clone
}
