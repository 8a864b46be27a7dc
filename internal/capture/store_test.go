package capture

import "testing"

func TestStoreSkipsFirstSSR(t *testing.T) {
	s := NewStore()
	req := Request{Method: "GET", URL: "https://example.com/", Kind: KindSSR}

	ord := s.Add(req, "<html>first load</html>")
	if ord != -1 {
		t.Fatalf("first SSR capture ordinal = %d, want -1 (skipped)", ord)
	}

	ord = s.Add(req, "<html>second load</html>")
	if ord != 0 {
		t.Fatalf("second SSR capture ordinal = %d, want 0", ord)
	}
	if len(s.Snapshot()) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(s.Snapshot()))
	}
}

func TestStoreFiltersNoise(t *testing.T) {
	s := NewStore()
	req := Request{Method: "GET", URL: "https://www.google-analytics.com/collect", Kind: KindAjax}
	if ord := s.Add(req, "{}"); ord != -1 {
		t.Errorf("analytics capture ordinal = %d, want -1 (filtered)", ord)
	}

	req2 := Request{Method: "GET", URL: "https://example.com/app.js", Kind: KindAjax}
	if ord := s.Add(req2, "console.log(1)"); ord != -1 {
		t.Errorf("static asset capture ordinal = %d, want -1 (filtered)", ord)
	}
}

func TestStoreDedupReplaceEarlier(t *testing.T) {
	s := NewStore()
	req := Request{Method: "GET", URL: "https://example.com/api/items", Kind: KindAjax}

	first := s.Add(req, `{"items":[1]}`)
	second := s.Add(req, `{"items":[1]}`)
	if first != second {
		t.Errorf("duplicate capture ordinal = %d, want same ordinal %d", second, first)
	}
	if len(s.Snapshot()) != 1 {
		t.Fatalf("snapshot len = %d, want 1 after dedup", len(s.Snapshot()))
	}
}

func TestStoreDedupKeepEarliest(t *testing.T) {
	s := NewStore()
	s.Dedup = KeepEarliest
	req := Request{Method: "GET", URL: "https://example.com/api/items", Kind: KindAjax}

	first := s.Add(req, `{"items":[1]}`)
	cr, _ := s.Get(first)
	if cr.Body != `{"items":[1]}` {
		t.Fatalf("unexpected first body: %q", cr.Body)
	}

	s.Add(req, `{"items":[1]}`)
	cr, ok := s.Get(first)
	if !ok || cr.Body != `{"items":[1]}` {
		t.Errorf("KeepEarliest should not overwrite the existing entry")
	}
}

func TestStoreBlockedTagging(t *testing.T) {
	s := NewStore()
	s.Protected = func(body string) bool {
		return body == "challenge page"
	}
	req := Request{Method: "GET", URL: "https://example.com/", Kind: KindSSR}

	// consume the skipped first SSR capture
	s.Add(req, "<html>first load</html>")

	ord := s.Add(req, "challenge page")
	cr, ok := s.Get(ord)
	if !ok {
		t.Fatal("expected capture to be recorded")
	}
	if cr.Request.Kind != KindBlocked {
		t.Errorf("Request.Kind = %v, want KindBlocked", cr.Request.Kind)
	}
}

func TestFilterHeadersStripsPseudoAndHopByHop(t *testing.T) {
	in := map[string]string{
		":authority":   "example.com",
		"Connection":   "keep-alive",
		"Content-Type": "application/json",
	}
	out := FilterHeaders(in)
	if _, ok := out[":authority"]; ok {
		t.Error("pseudo-header not stripped")
	}
	if _, ok := out["Connection"]; ok {
		t.Error("hop-by-hop header not stripped")
	}
	if out["Content-Type"] != "application/json" {
		t.Error("regular header was dropped")
	}
}
