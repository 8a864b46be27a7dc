package capture

import (
	"net/url"
	"regexp"
	"strings"
)

// assetExtensions are static-asset suffixes filtered unconditionally:
// script, stylesheet, image, font, sourcemap.
var assetExtensions = []string{
	".js", ".mjs", ".css",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".avif",
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	".map",
}

// noisePatterns match well-known analytics, telemetry, tagging, and
// tracker endpoints. These are hostname/path substrings seen across the
// common tag-manager and analytics vendors; the list is deliberately
// conservative. False negatives are cheap: an unfiltered analytics ping
// just becomes an extra ignored capture. False positives are not.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)google-analytics\.com`),
	regexp.MustCompile(`(?i)googletagmanager\.com`),
	regexp.MustCompile(`(?i)doubleclick\.net`),
	regexp.MustCompile(`(?i)facebook\.com/tr`),
	regexp.MustCompile(`(?i)connect\.facebook\.net`),
	regexp.MustCompile(`(?i)segment\.(io|com)`),
	regexp.MustCompile(`(?i)hotjar\.com`),
	regexp.MustCompile(`(?i)mixpanel\.com`),
	regexp.MustCompile(`(?i)amplitude\.com`),
	regexp.MustCompile(`(?i)/collect\b`),
	regexp.MustCompile(`(?i)/beacon\b`),
	regexp.MustCompile(`(?i)/track(ing)?\b`),
	regexp.MustCompile(`(?i)/pixel\b`),
	regexp.MustCompile(`(?i)sentry\.io`),
	regexp.MustCompile(`(?i)bugsnag\.com`),
	regexp.MustCompile(`(?i)newrelic\.com`),
	regexp.MustCompile(`(?i)fullstory\.com`),
	regexp.MustCompile(`(?i)clarity\.ms`),
}

// IsNoise reports whether rawURL should be filtered out of capture
// entirely: a static asset by extension, or a known analytics/telemetry
// endpoint by hostname or path substring.
func IsNoise(rawURL string) bool {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
	}

	lowerPath := strings.ToLower(path)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return true
		}
	}

	for _, re := range noisePatterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// hopByHopHeaders are stripped from every captured request, mirroring the
// standard HTTP hop-by-hop header set.
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// FilterHeaders removes HTTP/2 pseudo-headers (":authority", ":method",
// ...) and hop-by-hop headers from raw, returning a clean copy.
func FilterHeaders(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, ":") {
			continue
		}
		if hopByHopHeaders[strings.ToLower(k)] {
			continue
		}
		out[k] = v
	}
	return out
}
