package strategy

import (
	"context"
	"testing"

	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
)

func TestBuilderBuildProducesSource(t *testing.T) {
	llm := &fakeLLM{
		classification: llmclient.ClassificationResult{Parameters: []llmclient.ParameterClassification{
			{Name: "limit", Role: llmclient.RoleLimit},
			{Name: "offset", Role: llmclient.RoleOffset},
		}},
		queries: []string{`.products[]`},
	}
	b := NewBuilder(llm, nil)

	chosen := capture.CapturedResponse{
		Request: capture.Request{
			Method: "GET",
			URL:    "https://example.com/api/products",
			Query:  map[string]string{"limit": "20", "offset": "0"},
		},
		Body:    `{"products":[{"name":"Widget"},{"name":"Gadget"}]}`,
		Ordinal: 1,
	}

	src, ok, err := b.Build(context.Background(), chosen, []capture.CapturedResponse{chosen}, OutputSchema{"name": "string"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !ok {
		t.Fatal("Build() ok = false, want true")
	}
	if src.DefaultLimit != 2 {
		t.Errorf("DefaultLimit = %d, want 2", src.DefaultLimit)
	}
	if src.Query != `.products[]` {
		t.Errorf("Query = %q", src.Query)
	}
}

func TestBuilderBuildReturnsNotOKOnPaginationMiss(t *testing.T) {
	llm := &fakeLLM{classification: llmclient.ClassificationResult{}}
	b := NewBuilder(llm, nil)

	chosen := capture.CapturedResponse{
		Request: capture.Request{Method: "GET", URL: "https://example.com/", Query: map[string]string{"q": "x"}},
		Body:    `{"a":1}`,
	}

	_, ok, err := b.Build(context.Background(), chosen, nil, OutputSchema{"a": "number"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if ok {
		t.Error("Build() ok = true, want false when no candidates classify to a role")
	}
}

func TestLookupOuterHTMLFindsSelector(t *testing.T) {
	body := `<html><body><div id="grid"><span>x</span></div></body></html>`
	outer, ok := lookupOuterHTML("#grid", body)
	if !ok {
		t.Fatal("lookupOuterHTML() ok = false")
	}
	if outer == "" {
		t.Error("lookupOuterHTML() returned empty outer HTML")
	}
}
