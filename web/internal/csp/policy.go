package csp

import "strings"

// Header names. Exactly one is set on a response.
const (
	HeaderEnforce    = "Content-Security-Policy"
	HeaderReportOnly = "Content-Security-Policy-Report-Only"
	HeaderNonce      = "x-csp-nonce"
)

// DefaultReportURI is the service's own report endpoint, used when no external
// collector is configured.
const DefaultReportURI = "/api/csp-report"

// Fixed third-party origins referenced by the policy.
const (
	vercelScripts   = "https://va.vercel-scripts.com"
	googleTagMgr    = "https://www.googletagmanager.com"
	googleFontsCSS  = "https://fonts.googleapis.com"
	googleFontsData = "https://fonts.gstatic.com"
	supabaseHTTPS   = "https://*.supabase.co"
	supabaseWSS     = "wss://*.supabase.co"
	vercelInsights  = "https://vitals.vercel-insights.com"
	vercelLive      = "https://vercel.live"
	vercelLiveWS    = "wss://ws-us3.pusher.com"
)

// PolicyConfig is the full input to Build apart from the nonce.
type PolicyConfig struct {
	IsProd             bool
	UseNonce           bool
	ReportOnly         bool
	UseVercelAnalytics bool
	AllowVercelLive    bool

	// ReportURI overrides DefaultReportURI when non-empty.
	ReportURI string
}

// HeaderName returns the response header the policy is sent under.
func HeaderName(reportOnly bool) string {
	if reportOnly {
		return HeaderReportOnly
	}
	return HeaderEnforce
}

// Build assembles the policy string. It is deterministic for equal inputs.
// A nonce is only emitted when cfg.UseNonce is set and nonce is non-empty.
func Build(cfg PolicyConfig, nonce string) string {
	nonceActive := cfg.UseNonce && nonce != ""

	script := []string{"'self'"}
	style := []string{"'self'"}
	if nonceActive {
		script = append(script, "'nonce-"+nonce+"'")
		style = append(style, "'nonce-"+nonce+"'")
	}
	switch {
	case !cfg.IsProd:
		script = append(script, "'unsafe-inline'", "'unsafe-eval'")
		style = append(style, "'unsafe-inline'")
	case !nonceActive:
		script = append(script, "'unsafe-inline'")
		style = append(style, "'unsafe-inline'")
	}
	script = append(script, vercelScripts, googleTagMgr)
	style = append(style, googleFontsCSS)

	connect := []string{"'self'", supabaseHTTPS, supabaseWSS}
	if cfg.UseVercelAnalytics {
		connect = append(connect, vercelInsights, vercelScripts)
	}
	if cfg.AllowVercelLive {
		connect = append(connect, vercelLive, vercelLiveWS)
	}

	frame := []string{"'self'"}
	if cfg.AllowVercelLive {
		frame = append(frame, vercelLive)
	}

	directives := []string{
		directive("default-src", "'self'"),
		directive("script-src", script...),
		directive("style-src", style...),
		directive("font-src", "'self'", googleFontsData, "data:"),
		directive("img-src", "'self'", "data:", "blob:", "https:"),
		directive("connect-src", connect...),
		directive("frame-src", frame...),
		directive("frame-ancestors", "'self'"),
		directive("object-src", "'none'"),
		directive("base-uri", "'self'"),
		directive("form-action", "'self'"),
		directive("worker-src", "'self'", "blob:"),
		directive("manifest-src", "'self'"),
	}
	if !cfg.ReportOnly {
		directives = append(directives, "upgrade-insecure-requests")
	}

	reportURI := cfg.ReportURI
	if reportURI == "" {
		reportURI = DefaultReportURI
	}
	directives = append(directives, directive("report-uri", reportURI))

	return strings.Join(directives, "; ")
}

func directive(name string, sources ...string) string {
	return name + " " + strings.Join(sources, " ")
}

// Directives splits a policy string into a name -> sources map. Used by the
// CLI and tests to inspect a built policy.
func Directives(policy string) map[string][]string {
	out := make(map[string][]string)
	for _, part := range strings.Split(policy, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		out[fields[0]] = fields[1:]
	}
	return out
}
