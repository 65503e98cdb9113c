package secmon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchRequest(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		userAgent string
		referer   string
		signature string
		field     string
	}{
		{name: "path traversal", target: "/../../etc/passwd", signature: "path_traversal", field: "url"},
		{name: "encoded script tag", target: "/search?q=%3Cscript%3Ealert(1)%3C/script%3E", signature: "script_tag", field: "url"},
		{name: "javascript uri", target: "/go?next=javascript:alert(1)", signature: "javascript_uri", field: "url"},
		{name: "event handler", target: "/a?x=%22onload%3D", signature: "event_handler", field: "url"},
		{name: "union select", target: "/articles?id=1%20UNION%20SELECT%20password", signature: "sql_union_select", field: "url"},
		{name: "iframe in user agent", target: "/", userAgent: "Mozilla <IFRAME src=x>", signature: "iframe_tag", field: "user_agent"},
		{name: "eval in referer", target: "/", referer: "https://evil.example/?eval(atob('x'))", signature: "eval_call", field: "referer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}

			match, ok := MatchRequest(req)
			assert.True(t, ok)
			assert.Equal(t, tt.signature, match.Signature.Name)
			assert.Equal(t, tt.field, match.Field)
		})
	}
}

func TestMatchRequest_Clean(t *testing.T) {
	for _, target := range []string{"/articles/hello-world", "/", "/categories/go?page=2"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
		req.Header.Set("Referer", "https://shisei.example/")

		_, ok := MatchRequest(req)
		assert.False(t, ok, target)
	}
}

func TestMatchRequest_FirstSignatureWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/../x?q=%3Cscript%3E", nil)
	req.Header.Set("User-Agent", "<iframe>")

	match, ok := MatchRequest(req)
	assert.True(t, ok)
	assert.Equal(t, "path_traversal", match.Signature.Name)
}
