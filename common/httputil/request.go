// Package httputil holds small HTTP helpers shared by the guard service and CLI.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// DefaultMaxBodyBytes caps request bodies read through DecodeJSON.
const DefaultMaxBodyBytes = 1 << 20

// ErrEmptyBody is returned by DecodeJSON when the request carries no body.
var ErrEmptyBody = errors.New("request body is empty")

// GetClientIP returns the address resolved by WithClientIP, or the peer
// address without port. Forwarding headers are never read here.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return peerAddr(r)
}

// ParseIntParam parses an integer query parameter, returning defaultVal when
// the value is empty or invalid.
//
//	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), 100)
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

// ParseLimit reads the "limit" query parameter bounded to [1, maxLimit].
func ParseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit := ParseIntParam(r.URL.Query().Get("limit"), defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// DecodeJSON decodes the request body into dst, reading at most maxBytes.
// A maxBytes of zero uses DefaultMaxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
