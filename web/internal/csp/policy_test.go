package csp

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNonce = "AbCdEfGh12345678"

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestBuild_DirectiveOrder(t *testing.T) {
	policy := Build(PolicyConfig{}, "")

	var names []string
	for _, part := range strings.Split(policy, "; ") {
		names = append(names, strings.Fields(part)[0])
	}

	assert.Equal(t, []string{
		"default-src", "script-src", "style-src", "font-src", "img-src",
		"connect-src", "frame-src", "frame-ancestors", "object-src", "base-uri",
		"form-action", "worker-src", "manifest-src", "upgrade-insecure-requests", "report-uri",
	}, names)
}

func TestBuild_InlineOrNonceOutsideDevelopment(t *testing.T) {
	for _, isProd := range []bool{false, true} {
		for _, useNonce := range []bool{false, true} {
			for _, reportOnly := range []bool{false, true} {
				name := fmt.Sprintf("prod=%v/nonce=%v/reportOnly=%v", isProd, useNonce, reportOnly)
				t.Run(name, func(t *testing.T) {
					cfg := PolicyConfig{IsProd: isProd, UseNonce: useNonce, ReportOnly: reportOnly}
					script := Directives(Build(cfg, testNonce))["script-src"]

					hasInline := contains(script, "'unsafe-inline'")
					hasNonce := contains(script, "'nonce-"+testNonce+"'")

					assert.Equal(t, useNonce, hasNonce)
					assert.Equal(t, !isProd, contains(script, "'unsafe-eval'"))
					if isProd {
						assert.True(t, hasInline != hasNonce, "exactly one of unsafe-inline or nonce: %v", script)
					} else {
						assert.True(t, hasInline)
					}
				})
			}
		}
	}
}

func TestBuild_ScriptAndStyleSources(t *testing.T) {
	d := Directives(Build(PolicyConfig{IsProd: true, UseNonce: true}, testNonce))

	assert.Equal(t, []string{"'self'", "'nonce-" + testNonce + "'", "https://va.vercel-scripts.com", "https://www.googletagmanager.com"}, d["script-src"])
	assert.Equal(t, []string{"'self'", "'nonce-" + testNonce + "'", "https://fonts.googleapis.com"}, d["style-src"])

	dev := Directives(Build(PolicyConfig{}, ""))
	assert.Equal(t, []string{"'self'", "'unsafe-inline'", "'unsafe-eval'", "https://va.vercel-scripts.com", "https://www.googletagmanager.com"}, dev["script-src"])
	assert.Equal(t, []string{"'self'", "'unsafe-inline'", "https://fonts.googleapis.com"}, dev["style-src"])
}

func TestBuild_NonceIgnoredWhenDisabledOrEmpty(t *testing.T) {
	assert.NotContains(t, Build(PolicyConfig{IsProd: true}, testNonce), "nonce-")
	assert.NotContains(t, Build(PolicyConfig{IsProd: true, UseNonce: true}, ""), "nonce-")
}

func TestBuild_ConnectSources(t *testing.T) {
	tests := []struct {
		name     string
		cfg      PolicyConfig
		expected []string
	}{
		{
			name:     "base",
			cfg:      PolicyConfig{},
			expected: []string{"'self'", "https://*.supabase.co", "wss://*.supabase.co"},
		},
		{
			name:     "analytics",
			cfg:      PolicyConfig{UseVercelAnalytics: true},
			expected: []string{"'self'", "https://*.supabase.co", "wss://*.supabase.co", "https://vitals.vercel-insights.com", "https://va.vercel-scripts.com"},
		},
		{
			name:     "analytics and live",
			cfg:      PolicyConfig{UseVercelAnalytics: true, AllowVercelLive: true},
			expected: []string{"'self'", "https://*.supabase.co", "wss://*.supabase.co", "https://vitals.vercel-insights.com", "https://va.vercel-scripts.com", "https://vercel.live", "wss://ws-us3.pusher.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Directives(Build(tt.cfg, ""))["connect-src"])
		})
	}
}

func TestBuild_FrameSourceWithLive(t *testing.T) {
	assert.Equal(t, []string{"'self'"}, Directives(Build(PolicyConfig{}, ""))["frame-src"])
	assert.Equal(t, []string{"'self'", "https://vercel.live"}, Directives(Build(PolicyConfig{AllowVercelLive: true}, ""))["frame-src"])
}

func TestBuild_HardeningDirectivesUnconditional(t *testing.T) {
	for _, cfg := range []PolicyConfig{{}, {IsProd: true, UseNonce: true, ReportOnly: true, UseVercelAnalytics: true, AllowVercelLive: true}} {
		policy := Build(cfg, testNonce)
		assert.Contains(t, policy, "object-src 'none'")
		assert.Contains(t, policy, "frame-ancestors 'self'")
		assert.Contains(t, policy, "base-uri 'self'")
		assert.Contains(t, policy, "form-action 'self'")
	}
}

func TestBuild_UpgradeInsecureRequests(t *testing.T) {
	assert.Contains(t, Build(PolicyConfig{}, ""), "upgrade-insecure-requests")
	assert.NotContains(t, Build(PolicyConfig{ReportOnly: true}, ""), "upgrade-insecure-requests")
}

func TestBuild_ReportURI(t *testing.T) {
	d := Directives(Build(PolicyConfig{}, ""))
	assert.Equal(t, []string{DefaultReportURI}, d["report-uri"])

	d = Directives(Build(PolicyConfig{ReportURI: "https://collector.example.com/r"}, ""))
	assert.Equal(t, []string{"https://collector.example.com/r"}, d["report-uri"])

	assert.True(t, strings.HasSuffix(Build(PolicyConfig{}, ""), "report-uri /api/csp-report"))
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := PolicyConfig{IsProd: true, UseNonce: true, UseVercelAnalytics: true}
	assert.Equal(t, Build(cfg, testNonce), Build(cfg, testNonce))
}

func TestHeaderName(t *testing.T) {
	assert.Equal(t, "Content-Security-Policy-Report-Only", HeaderName(true))
	assert.Equal(t, "Content-Security-Policy", HeaderName(false))
}

func TestDirectives(t *testing.T) {
	d := Directives("default-src 'self'; upgrade-insecure-requests;  ")
	require.Len(t, d, 2)
	assert.Equal(t, []string{"'self'"}, d["default-src"])
	assert.Empty(t, d["upgrade-insecure-requests"])
}
