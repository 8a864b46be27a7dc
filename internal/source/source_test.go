package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sourcelens-io/sourcelens/internal/capture"
)

func TestGenerateRejectsUnknownDynamicParameter(t *testing.T) {
	src := &Source{
		Request: capture.Request{Query: map[string]string{"page": "1"}},
		Strategy: Strategy{Shape: ShapePageBased, Page: &NumberParameter{Name: "page", Default: 1}},
	}
	if _, err := src.Generate(10, 0, map[string]string{"bogus": "x"}); err == nil {
		t.Error("expected error for unknown dynamic parameter")
	}
}

func TestGenerateAcceptsKnownDynamicParameter(t *testing.T) {
	src := &Source{
		Request:  capture.Request{Query: map[string]string{"page": "1", "category": "books"}},
		Strategy: Strategy{Shape: ShapePageBased, Page: &NumberParameter{Name: "page", Default: 1}},
	}
	if _, err := src.Generate(10, 0, map[string]string{"category": "toys"}); err != nil {
		t.Errorf("Generate() error = %v", err)
	}
}

func TestStrategyParameterNames(t *testing.T) {
	st := Strategy{
		Shape:  ShapeLimitOffset,
		Limit:  &NumberParameter{Name: "limit", Default: 20},
		Offset: &NumberParameter{Name: "offset", Default: 0},
	}
	names := st.ParameterNames()
	if len(names) != 2 {
		t.Fatalf("ParameterNames() = %v, want 2 entries", names)
	}
}

func TestPagerLimitOffsetAdvancesAndStopsOnEmptyPage(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"items":[{"id":1},{"id":2}]}`))
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	src := &Source{
		Request: capture.Request{
			Method: http.MethodGet,
			URL:    server.URL,
			Query:  map[string]string{"limit": "2", "offset": "0"},
		},
		Strategy: Strategy{
			Shape:  ShapeLimitOffset,
			Limit:  &NumberParameter{Name: "limit", Default: 2},
			Offset: &NumberParameter{Name: "offset", Default: 0},
		},
		Query:        `.items[]`,
		DefaultLimit: 2,
	}

	pager, err := src.Generate(2, 0, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	page1, ok, err := pager.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next() page1 ok=%v err=%v", ok, err)
	}
	if len(page1.Records) != 2 {
		t.Fatalf("page1 records = %d, want 2", len(page1.Records))
	}

	page2, ok, err := pager.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() page2 error = %v", err)
	}
	if ok {
		t.Error("expected ok=false once the page returns no records")
	}
	if len(page2.Records) != 0 {
		t.Errorf("page2 records = %d, want 0", len(page2.Records))
	}
	if calls != 2 {
		t.Errorf("server received %d calls, want 2", calls)
	}
}

func TestPagerBuildRequestWithNilQueryDoesNotPanic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	src := &Source{
		Request: capture.Request{
			Method: http.MethodGet,
			URL:    server.URL,
		},
		Strategy: Strategy{
			Shape: ShapeLimitOffset,
			Limit: &NumberParameter{Name: "limit", Default: 20},
			Offset: &NumberParameter{Name: "offset", Default: 0},
		},
		Query:        `.items[]`,
		DefaultLimit: 20,
	}

	pager, err := src.Generate(20, 0, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, _, err := pager.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
}

func TestPagerRoutesParameterIntoPostBody(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	src := &Source{
		Request: capture.Request{
			Method:   http.MethodPost,
			URL:      server.URL,
			PostBody: map[string]interface{}{"page": float64(1)},
		},
		Strategy: Strategy{
			Shape: ShapePageBased,
			Page:  &NumberParameter{Name: "page", Default: 1},
		},
		Query:        `.items[]`,
		DefaultLimit: 20,
	}

	pager, err := src.Generate(20, 0, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, _, err := pager.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if gotBody["page"] != "1" {
		t.Errorf("request post body = %+v, want page=\"1\"", gotBody)
	}
	if _, ok := gotBody["page"]; !ok {
		t.Errorf("expected page to be sent in the post body, not the query string")
	}
}
