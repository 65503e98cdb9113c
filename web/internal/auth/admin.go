package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// APIKeyUser is the user id attached to requests authenticated by API key.
const APIKeyUser = "api-key"

var ErrMissingCredentials = errors.New("missing credentials")

// EventRecorder receives authentication and authorization failures.
type EventRecorder interface {
	RecordRequest(r *http.Request, eventType secmon.EventType, details map[string]any) secmon.SecurityEvent
}

// AdminGuard admits requests carrying an admin session or the admin API key.
type AdminGuard struct {
	verifier   *TokenVerifier
	role       string
	apiKeyHash []byte
	events     EventRecorder
	logger     *slog.Logger
}

func NewAdminGuard(verifier *TokenVerifier, role, apiKeyHash string, events EventRecorder, logger *slog.Logger) *AdminGuard {
	if role == "" {
		role = "admin"
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &AdminGuard{
		verifier: verifier,
		role:     role,
		events:   events,
		logger:   logger,
	}
	if apiKeyHash != "" {
		g.apiKeyHash = []byte(apiKeyHash)
	}
	return g
}

// HashAPIKey returns the bcrypt hash to configure as auth.admin_api_key_hash.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Require wraps next so that only admins reach it. Missing or invalid
// credentials get 401, a valid session without the admin role gets 403.
func (g *AdminGuard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := credential(r)
		if token == "" {
			g.deny(w, r, secmon.AuthenticationFailure, http.StatusUnauthorized, ErrMissingCredentials)
			return
		}

		if g.apiKeyMatches(token) {
			ctx := context.WithValue(r.Context(), UserIDKey, APIKeyUser)
			ctx = context.WithValue(ctx, RolesKey, []string{g.role})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := g.verifier.Verify(token)
		if err != nil {
			g.deny(w, r, secmon.AuthenticationFailure, http.StatusUnauthorized, err)
			return
		}
		if !claims.HasRole(g.role) {
			g.deny(w, r, secmon.AuthorizationFailure, http.StatusForbidden, nil, slog.String("user_id", claims.UserID))
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, RolesKey, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *AdminGuard) apiKeyMatches(token string) bool {
	if len(g.apiKeyHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.apiKeyHash, []byte(token)) == nil
}

// credential prefers the Authorization header over the session cookie.
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func (g *AdminGuard) deny(w http.ResponseWriter, r *http.Request, eventType secmon.EventType, status int, err error, attrs ...any) {
	details := map[string]any{"status": status}
	if err != nil {
		details["reason"] = err.Error()
	}
	if g.events != nil {
		g.events.RecordRequest(r, eventType, details)
	}

	g.logger.WarnContext(r.Context(), "admin access denied",
		append([]any{logging.Path(r.URL.Path), logging.Status(status), logging.IP(httputil.GetClientIP(r))}, attrs...)...)

	if status == http.StatusForbidden {
		httputil.WriteError(w, status, "Forbidden")
		return
	}
	httputil.WriteError(w, status, "Unauthorized")
}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

func GetRoles(ctx context.Context) []string {
	if roles, ok := ctx.Value(RolesKey).([]string); ok {
		return roles
	}
	return []string{}
}
