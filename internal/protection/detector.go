// Package protection detects bot-protection challenge pages inside an
// already-rendered document, so Response Capture can tag them `blocked`
// instead of `ssr` rather than let them pollute text correlation.
package protection

import (
	"strings"
)

// Signal identifies the kind of challenge page matched.
type Signal string

const (
	SignalNone           Signal = ""
	SignalCloudflare     Signal = "cloudflare"
	SignalCaptcha        Signal = "captcha"
	SignalAccessDenied   Signal = "access_denied"
	SignalJavaScriptWall Signal = "javascript_required"
)

// Detection reports whether body looks like a challenge page rather than
// real content.
type Detection struct {
	Detected bool
	Signal   Signal
	Reason   string
}

var cloudflarePatterns = []string{
	"cf-browser-verification",
	"challenge-platform",
	"cf_chl_opt",
	"_cf_chl",
	"checking your browser",
	"please wait... | cloudflare",
	"just a moment...",
	"attention required! | cloudflare",
}

var captchaPatterns = []string{
	"g-recaptcha",
	"grecaptcha",
	"h-captcha",
	"hcaptcha",
	"data-sitekey",
	"turnstile",
	"cf-turnstile",
}

var accessDeniedPatterns = []string{
	"access denied",
	"access to this page has been denied",
	"request blocked",
	"bot detected",
	"please verify you are human",
	"are you a robot",
	"prove you're not a robot",
}

var jsWallPatterns = []string{
	"enable javascript",
	"javascript is required",
	"requires javascript",
	"please enable javascript",
	"this site requires javascript",
}

// Detect inspects a rendered document body for challenge-page signatures.
// Unlike a raw-HTTP fetcher's protection check, this runs on a page the
// controlled browser has already navigated to and rendered, so
// status-code and header signals are not applicable; only body content
// is examined.
func Detect(body string) Detection {
	lower := strings.ToLower(body)

	if d := matchAny(lower, cloudflarePatterns, SignalCloudflare, "Cloudflare challenge markers present"); d.Detected {
		return d
	}
	if d := matchAny(lower, captchaPatterns, SignalCaptcha, "captcha widget markers present"); d.Detected {
		return d
	}
	if d := matchAny(lower, accessDeniedPatterns, SignalAccessDenied, "access-denied wording present"); d.Detected {
		return d
	}
	if d := matchAny(lower, jsWallPatterns, SignalJavaScriptWall, "javascript-required wording present"); d.Detected {
		return d
	}

	return Detection{Detected: false}
}

func matchAny(lower string, patterns []string, signal Signal, reason string) Detection {
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return Detection{Detected: true, Signal: signal, Reason: reason}
		}
	}
	return Detection{}
}

// IsChallenge is the capture.ProtectionDetector-shaped adapter: it reports
// only the boolean verdict the Store needs to decide between KindSSR and
// KindBlocked.
func IsChallenge(body string) bool {
	return Detect(body).Detected
}
