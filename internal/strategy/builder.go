// Package strategy implements the Strategy Builder: pagination
// detection, cursor-pattern training, and extraction-code synthesis and
// validation against a chosen CapturedResponse.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
	"github.com/sourcelens-io/sourcelens/internal/source"
)

// Builder runs both pagination detection and extraction synthesis against
// a chosen response.
type Builder struct {
	LLM    llmclient.Client
	Hinter *RepeatHinter
	Logger *slog.Logger
}

// NewBuilder returns a Builder with the default RepeatHinter.
func NewBuilder(llm llmclient.Client, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{LLM: llm, Hinter: NewRepeatHinter(), Logger: logger.With("component", "strategy_builder")}
}

// Build attempts to produce a Source from chosen, given the full capture
// history (needed for cursor-pattern training) and the user's output
// schema. ok is false on a pagination-detection miss: not an error, the
// Analyzer Loop just continues to the next step; err is non-nil only for
// a hard failure (extraction synthesis exhausted), which is fatal for
// this response but not the overall run.
func (b *Builder) Build(ctx context.Context, chosen capture.CapturedResponse, history []capture.CapturedResponse, schema OutputSchema) (*source.Source, bool, error) {
	body := chosen.PreprocessedBody(lookupOuterHTML)

	strat, err := detectPagination(ctx, b.LLM, chosen, history)
	if err != nil {
		b.Logger.Info("pagination detection miss", "event", "strategy:pagination", "status", "failed", "reason", err.Error())
		return nil, false, nil
	}
	for _, name := range strat.ParameterNames() {
		if !parameterExistsInRequest(chosen.Request, name) {
			b.Logger.Info("pagination strategy rejected: parameter not in request", "event", "strategy:pagination", "status", "failed", "reason", name)
			return nil, false, nil
		}
	}
	b.Logger.Info("pagination strategy detected", "event", "strategy:pagination", "status", "success", "shape", string(strat.Shape))

	hint, _ := b.Hinter.Hint(body)
	var hintPtr *RepeatHint
	if hint.Count > 0 {
		hintPtr = &hint
	}

	jsonSchema := ToJSONSchema(schema)
	query, records, err := synthesizeExtraction(ctx, b.LLM, jsonSchema, body, hintPtr, schema)
	if err != nil {
		b.Logger.Warn("extraction synthesis failed", "event", "strategy:extraction", "status", "failed", "reason", err.Error())
		return nil, false, fmt.Errorf("strategy: build: %w", err)
	}
	b.Logger.Info("extraction synthesized", "event", "strategy:extraction", "status", "success", "records", len(records))

	var preproc *capture.Preprocessor
	if chosen.Preproc != nil {
		preproc = chosen.Preproc
	}

	src := &source.Source{
		Request:      chosen.Request,
		Strategy:     strat,
		Preproc:      preproc,
		Query:        query,
		DefaultLimit: len(records),
	}
	return src, true, nil
}

// parameterExistsInRequest checks that a classified parameter name (which
// may be a dotted path into a nested post-body object, per
// capture.ExtractCandidates) still resolves against req: every strategy
// parameter must name something in its originating Request.
func parameterExistsInRequest(req capture.Request, name string) bool {
	if _, ok := req.Query[name]; ok {
		return true
	}
	return resolvesDottedPath(req.PostBody, strings.Split(name, "."))
}

// lookupOuterHTML resolves a CSS selector against a raw HTML body, used to
// apply a Preprocessor at strategy-build time without a live browser page
// (the preprocessor was attached earlier against the live DOM; by the
// time the Strategy Builder runs, only the captured body text remains).
func lookupOuterHTML(selector, body string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	outer, err := goquery.OuterHtml(sel)
	if err != nil || outer == "" {
		return "", false
	}
	return outer, true
}

func resolvesDottedPath(m map[string]interface{}, parts []string) bool {
	if m == nil || len(parts) == 0 {
		return false
	}
	v, ok := m[parts[0]]
	if !ok {
		return false
	}
	if len(parts) == 1 {
		return true
	}
	nested, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	return resolvesDottedPath(nested, parts[1:])
}
