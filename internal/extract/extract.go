// Package extract runs LLM-synthesized extraction programs against a
// captured response body in a sandboxed, bounded evaluator. Programs are
// gojq (https://github.com/itchyny/gojq) query expressions rather than
// free-form code: a pure, non-Turing-complete language with no network or
// filesystem access, keeping generated extraction logic inside a schema
// shaped instruction tree instead of executing generated code directly.
// A body is accepted as either JSON or HTML: an HTML body is walked into
// an equivalent JSON tree before the program runs, so a query never needs
// to know which it received.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/itchyny/gojq"
	"golang.org/x/net/html"
)

// ErrEvaluationTimeout is returned when a program does not finish within
// the wall-clock limit.
var ErrEvaluationTimeout = errors.New("extract: evaluation exceeded wall-clock limit")

// DefaultTimeout bounds a single evaluation, guarding against pathological
// queries (e.g. deeply nested recursive descent on a large document).
const DefaultTimeout = 2 * time.Second

// Run parses query as a gojq program and evaluates it against body
// (interpreted as JSON, or as HTML walked into an equivalent JSON tree).
// It returns the list of records the program yields as a pure function:
// each yielded JSON object is one record, a yielded array contributes its
// object elements, and any other value is skipped.
func Run(query, body string) ([]map[string]interface{}, error) {
	return RunWithTimeout(query, body, DefaultTimeout)
}

// RunWithTimeout is Run with an explicit wall-clock bound.
func RunWithTimeout(query, body string, timeout time.Duration) ([]map[string]interface{}, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("extract: parse query: %w", err)
	}

	input, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("extract: compile query: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resultCh := make(chan runOutcome, 1)
	go func() {
		records, err := collect(code.RunWithContext(ctx, input))
		resultCh <- runOutcome{records: records, err: err}
	}()

	select {
	case out := <-resultCh:
		return out.records, out.err
	case <-ctx.Done():
		return nil, ErrEvaluationTimeout
	}
}

// decodeBody turns body into the value a gojq program runs against. A JSON
// body decodes as-is; an HTML body (an ssr capture, preprocessed or not) is
// walked into a JSON-serializable DOM tree instead of being rejected, since
// a generated query still needs something to address field paths into.
// html.Parse happily wraps arbitrary text in a synthetic <html><body>, so a
// body is only attempted as HTML once it actually looks like a markup
// document; anything else falls through to the original JSON error rather
// than silently "succeeding" against a body that is neither.
func decodeBody(body string) (interface{}, error) {
	var input interface{}
	jsonErr := json.Unmarshal([]byte(body), &input)
	if jsonErr == nil {
		return input, nil
	}

	if !looksLikeHTML(body) {
		return nil, fmt.Errorf("extract: body is not valid JSON: %w", jsonErr)
	}

	tree, err := htmlToJSON(body)
	if err != nil {
		return nil, fmt.Errorf("extract: body is neither valid JSON nor parseable HTML: %w", err)
	}
	return tree, nil
}

// looksLikeHTML reports whether body's first non-whitespace content opens a
// markup tag, the same cheap sniff used to decide between JSON and HTML
// decoding without a full parse attempt.
func looksLikeHTML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}

// htmlToJSON parses body as HTML and converts its <body> element into a
// nested map gojq can walk: "tag", "attrs", "text" (this element's own
// direct text, trimmed and space-joined) and "children" (same shape,
// recursively). This is the same DOM model internal/strategy already
// walks with goquery for Preprocessor selectors, just surfaced as data
// instead of being queried through CSS selectors. Rooting at <body>
// rather than the parse tree's document node skips the
// doctype/html/head scaffolding html.Parse always synthesizes, so a
// generated query addresses the content a caller actually captured.
func htmlToJSON(body string) (interface{}, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	if root.Length() == 0 || root.Get(0) == nil {
		return nil, errors.New("empty html document")
	}
	return htmlNodeToJSON(root.Get(0)), nil
}

func htmlNodeToJSON(n *html.Node) map[string]interface{} {
	attrs := make(map[string]interface{}, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	var children []interface{}
	var text []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			children = append(children, htmlNodeToJSON(c))
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				text = append(text, t)
			}
		}
	}

	return map[string]interface{}{
		"tag":      n.Data,
		"attrs":    attrs,
		"text":     strings.Join(text, " "),
		"children": children,
	}
}

type runOutcome struct {
	records []map[string]interface{}
	err     error
}

func collect(iter gojq.Iter) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("extract: query error: %w", err)
		}
		switch rec := v.(type) {
		case map[string]interface{}:
			out = append(out, rec)
		case []interface{}:
			for _, item := range rec {
				if m, ok := item.(map[string]interface{}); ok {
					out = append(out, m)
				}
			}
		}
	}
}
