package secmon

import (
	"net/http"
	"net/url"
	"regexp"
)

// Signature is a named attack pattern.
type Signature struct {
	Name    string
	Pattern *regexp.Regexp
}

// Signatures are checked in order; the first hit wins.
var Signatures = []Signature{
	{Name: "path_traversal", Pattern: regexp.MustCompile(`\.\./`)},
	{Name: "script_tag", Pattern: regexp.MustCompile(`(?i)<script`)},
	{Name: "javascript_uri", Pattern: regexp.MustCompile(`(?i)javascript:`)},
	{Name: "event_handler", Pattern: regexp.MustCompile(`(?i)\bon\w+\s*=`)},
	{Name: "sql_union_select", Pattern: regexp.MustCompile(`(?i)union\s+select`)},
	{Name: "iframe_tag", Pattern: regexp.MustCompile(`(?i)<iframe`)},
	{Name: "eval_call", Pattern: regexp.MustCompile(`(?i)eval\(`)},
}

// Match describes which signature fired and where.
type Match struct {
	Signature Signature
	Field     string
	URL       string
	UserAgent string
	Referer   string
}

// MatchRequest checks the request URL, User-Agent and Referer against
// Signatures. It has no side effects.
func MatchRequest(r *http.Request) (Match, bool) {
	rawURL := r.RequestURI
	if rawURL == "" {
		rawURL = r.URL.RequestURI()
	}
	ua := r.UserAgent()
	referer := r.Referer()

	candidates := []struct {
		field string
		value string
	}{
		{"url", rawURL},
		{"url", unescape(rawURL)},
		{"user_agent", ua},
		{"referer", referer},
	}

	for _, sig := range Signatures {
		for _, c := range candidates {
			if c.value != "" && sig.Pattern.MatchString(c.value) {
				return Match{Signature: sig, Field: c.field, URL: rawURL, UserAgent: ua, Referer: referer}, true
			}
		}
	}
	return Match{}, false
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
