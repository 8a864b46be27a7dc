package capture

import "testing"

func TestExtractCandidatesFromQuery(t *testing.T) {
	req := Request{Query: map[string]string{"limit": "20", "offset": "0", "q": "hi"}}
	candidates := ExtractCandidates(req)
	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2 (q is too short to be a token)", len(candidates))
	}
}

func TestExtractCandidatesFromNestedPostBody(t *testing.T) {
	req := Request{PostBody: map[string]interface{}{
		"pagination": map[string]interface{}{
			"cursor": "abcdefghij1234567890",
			"limit":  float64(10),
		},
	}}
	candidates := ExtractCandidates(req)
	var sawCursor, sawLimit bool
	for _, c := range candidates {
		if c.Name == "pagination.cursor" && c.Kind == CandidateToken {
			sawCursor = true
		}
		if c.Name == "pagination.limit" && c.Kind == CandidateInteger {
			sawLimit = true
		}
	}
	if !sawCursor || !sawLimit {
		t.Errorf("candidates = %+v, want nested cursor and limit", candidates)
	}
}

func TestExtractCandidatesFromRawJSON(t *testing.T) {
	req := Request{RawPostBody: []byte(`{"lastEvaluated":"eyJpZCI6MTIzfQ==","page":2}`)}
	candidates := ExtractCandidates(req)
	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(candidates))
	}
}
