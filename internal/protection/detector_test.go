package protection

import "testing"

func TestDetectCloudflareChallenge(t *testing.T) {
	body := `<html><head><title>Just a moment...</title></head><body>Checking your browser before accessing example.com.</body></html>`
	d := Detect(body)
	if !d.Detected || d.Signal != SignalCloudflare {
		t.Errorf("Detect(cloudflare) = %+v, want Detected with SignalCloudflare", d)
	}
}

func TestDetectCaptchaWidget(t *testing.T) {
	body := `<div class="g-recaptcha" data-sitekey="abc123"></div>`
	d := Detect(body)
	if !d.Detected || d.Signal != SignalCaptcha {
		t.Errorf("Detect(captcha) = %+v, want Detected with SignalCaptcha", d)
	}
}

func TestDetectJavaScriptWall(t *testing.T) {
	body := `<body><noscript>Please enable JavaScript to view this site.</noscript></body>`
	d := Detect(body)
	if !d.Detected || d.Signal != SignalJavaScriptWall {
		t.Errorf("Detect(js-wall) = %+v, want Detected with SignalJavaScriptWall", d)
	}
}

func TestDetectOrdinaryPageNotFlagged(t *testing.T) {
	body := `<html><body><h1>Widget Catalog</h1><p>Browse our full range of widgets.</p></body></html>`
	d := Detect(body)
	if d.Detected {
		t.Errorf("Detect(ordinary page) = %+v, want not Detected", d)
	}
}

func TestIsChallengeAdapter(t *testing.T) {
	if IsChallenge("ordinary content") {
		t.Error("IsChallenge(ordinary content) = true, want false")
	}
	if !IsChallenge("cf-turnstile widget present") {
		t.Error("IsChallenge(turnstile) = false, want true")
	}
}
