package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.195")
	assert.Equal(t, "192.0.2.1", GetClientIP(req), "headers are ignored without a resolved address")

	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", GetClientIP(req))

	req = req.WithContext(WithClientIP(req.Context(), "203.0.113.9"))
	assert.Equal(t, "203.0.113.9", GetClientIP(req))
}

func TestResolveClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:       "untrusted peer ignores forwarded for",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195"},
			remoteAddr: "198.51.100.20:4000",
			expectedIP: "198.51.100.20",
		},
		{
			name:       "untrusted peer ignores real ip",
			headers:    map[string]string{"X-Real-IP": "198.51.100.42"},
			remoteAddr: "198.51.100.20:4000",
			expectedIP: "198.51.100.20",
		},
		{
			name:       "trusted peer single hop",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195"},
			remoteAddr: "10.1.2.3:4000",
			expectedIP: "203.0.113.195",
		},
		{
			name:       "spoofed left entries are skipped",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.195, 10.0.0.5"},
			remoteAddr: "10.1.2.3:4000",
			expectedIP: "203.0.113.195",
		},
		{
			name:       "all hops trusted uses leftmost",
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.9, 10.0.0.5"},
			remoteAddr: "192.0.2.10:4000",
			expectedIP: "10.0.0.9",
		},
		{
			name:       "garbage hop stops the walk",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, not-an-ip"},
			remoteAddr: "10.1.2.3:4000",
			expectedIP: "10.1.2.3",
		},
		{
			name:       "trusted peer real ip",
			headers:    map[string]string{"X-Real-IP": "198.51.100.42"},
			remoteAddr: "10.1.2.3:4000",
			expectedIP: "198.51.100.42",
		},
		{
			name:       "trusted peer without headers",
			remoteAddr: "10.1.2.3:4000",
			expectedIP: "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expectedIP, ResolveClientIP(req, trusted))
		})
	}
}

func TestResolveClientIP_NoTrustedProxies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.195")
	assert.Equal(t, "10.1.2.3", ResolveClientIP(req, nil))
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "", "::1", "172.16.5.4/12"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "::1/128", got[1].String())
	assert.Equal(t, "172.16.0.0/12", got[2].String())

	_, err = ParseTrustedProxies([]string{"not-a-cidr"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestParseIntParam(t *testing.T) {
	assert.Equal(t, 10, ParseIntParam("", 10))
	assert.Equal(t, 25, ParseIntParam("25", 10))
	assert.Equal(t, 10, ParseIntParam("abc", 10))
	assert.Equal(t, -3, ParseIntParam("-3", 10))
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query    string
		expected int
	}{
		{query: "", expected: 100},
		{query: "?limit=5", expected: 5},
		{query: "?limit=0", expected: 100},
		{query: "?limit=-1", expected: 100},
		{query: "?limit=5000", expected: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/csp-report"+tt.query, nil)
			assert.Equal(t, tt.expected, ParseLimit(req, 100, 1000))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		SessionID string `json:"sessionId"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sessionId":"abc"}`))
	w := httptest.NewRecorder()
	require.NoError(t, DecodeJSON(w, req, &dst, 0))
	assert.Equal(t, "abc", dst.SessionID)
}

func TestDecodeJSON_Errors(t *testing.T) {
	var dst map[string]any

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &dst, 0), ErrEmptyBody)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &dst, 0))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &dst, 16))
}
