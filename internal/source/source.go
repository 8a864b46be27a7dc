// Package source implements the Source artifact: an HTTP request template,
// a pagination strategy, an optional response preprocessor, and a
// generated extraction routine, together capable of streaming structured
// records from a site without further LLM cost.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/sjson"

	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/extract"
)

// Source is the sealed artifact the Analyzer produces on success. It is
// immutable: Generate never mutates Request, Strategy, Preproc, or Query.
type Source struct {
	Request      capture.Request
	Strategy     Strategy
	Preproc      *capture.Preprocessor
	Query        string // gojq extraction program
	DefaultLimit int
}

// Page is one page of extracted records plus the raw body it came from,
// kept so callers can inspect or re-derive a cursor themselves.
type Page struct {
	Records []map[string]interface{}
	Body    string
}

// Pager is the live iterator Generate returns. It is not safe for
// concurrent use: each call to Next advances the strategy's internal
// position (page number, offset, or cursor) by one page.
type Pager struct {
	src    *Source
	client *http.Client

	query   map[string]string
	body    map[string]interface{}
	rawBody []byte // used when the trained Request carried an unparsed JSON body
	limit   int
	offset  int
	page    int
	cursor  string
	done    bool
}

// Generate validates dynamicParameters against the trained Request and
// returns a Pager starting at limit/offset. Every key in dynamicParameters
// must name a parameter already present in the Request's query or
// post-body; unknown names are rejected rather than silently added,
// since a parameter the trained request never had cannot be replayed
// meaningfully against the pagination strategy.
func (s *Source) Generate(limit, offset int, dynamicParameters map[string]string) (*Pager, error) {
	if err := s.validateDynamicParameters(dynamicParameters); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.DefaultLimit
	}

	query := cloneStringMap(s.Request.Query)
	if query == nil {
		query = make(map[string]string)
	}
	p := &Pager{
		src:     s,
		client:  &http.Client{},
		query:   query,
		body:    cloneAnyMap(s.Request.PostBody),
		rawBody: append([]byte(nil), s.Request.RawPostBody...),
		limit:   limit,
		offset:  offset,
		page:    firstPageNumber(s.Strategy),
	}
	for k, v := range dynamicParameters {
		if p.query != nil {
			if _, ok := p.query[k]; ok {
				p.query[k] = v
			}
		}
		if p.body != nil {
			if _, ok := p.body[k]; ok {
				p.body[k] = v
			}
		} else if len(p.rawBody) > 0 {
			if updated, err := sjson.SetBytes(p.rawBody, k, v); err == nil {
				p.rawBody = updated
			}
		}
	}
	return p, nil
}

func (s *Source) validateDynamicParameters(dynamicParameters map[string]string) error {
	if len(dynamicParameters) == 0 {
		return nil
	}
	known := make(map[string]bool)
	for k := range s.Request.Query {
		known[k] = true
	}
	for k := range s.Request.PostBody {
		known[k] = true
	}
	for k := range dynamicParameters {
		if !known[k] {
			return fmt.Errorf("source: unknown dynamic parameter %q is not present in the trained request", k)
		}
	}
	return nil
}

func firstPageNumber(st Strategy) int {
	if st.Page != nil {
		return st.Page.Default
	}
	return 1
}

// Next fetches, preprocesses, and extracts the next page. ok is false once
// the strategy has no further page to request (a cursor-based strategy
// whose pattern no longer matches, or an empty-records page signaling
// exhaustion for count-based shapes).
func (p *Pager) Next(ctx context.Context) (Page, bool, error) {
	if p.done {
		return Page{}, false, nil
	}

	req, err := p.buildRequest(ctx)
	if err != nil {
		return Page{}, false, err
	}
	body, err := p.fetch(req)
	if err != nil {
		return Page{}, false, err
	}

	effective := body
	if p.src.Preproc != nil {
		effective = p.src.Preproc.Apply(body, func(selector string) (string, bool) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
			if err != nil {
				return "", false
			}
			outer, err := goquery.OuterHtml(doc.Find(selector).First())
			return outer, err == nil && outer != ""
		})
	}

	records, err := extract.Run(p.src.Query, effective)
	if err != nil {
		return Page{}, false, fmt.Errorf("source: extraction: %w", err)
	}

	if len(records) == 0 {
		p.done = true
		return Page{Records: records, Body: body}, false, nil
	}

	p.advance(body)
	return Page{Records: records, Body: body}, true, nil
}

func (p *Pager) buildRequest(ctx context.Context) (*http.Request, error) {
	st := p.src.Strategy
	switch st.Shape {
	case ShapePageBased, ShapePageOffset:
		p.setParam(st.Page.Name, strconv.Itoa(p.page))
		if st.Limit != nil {
			p.setParam(st.Limit.Name, strconv.Itoa(p.limit))
		}
	case ShapeLimitOffset:
		p.setParam(st.Limit.Name, strconv.Itoa(p.limit))
		p.setParam(st.Offset.Name, strconv.Itoa(p.offset))
	case ShapeCursorBased:
		if st.Limit != nil {
			p.setParam(st.Limit.Name, strconv.Itoa(p.limit))
		}
		if p.cursor != "" {
			p.setParam(st.Cursor.Name, p.cursor)
		}
	}

	reqURL, err := url.Parse(p.src.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("source: parse request URL: %w", err)
	}
	q := reqURL.Query()
	for k, v := range p.query {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()

	var bodyReader io.Reader
	if p.body != nil {
		encoded, err := json.Marshal(p.body)
		if err != nil {
			return nil, fmt.Errorf("source: encode post body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	} else if len(p.rawBody) > 0 {
		bodyReader = bytes.NewReader(p.rawBody)
	}

	method := p.src.Request.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	for k, v := range p.src.Request.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (p *Pager) fetch(req *http.Request) (string, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("source: fetch: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("source: read response body: %w", err)
	}
	return string(data), nil
}

func (p *Pager) advance(body string) {
	st := p.src.Strategy
	switch st.Shape {
	case ShapePageBased, ShapePageOffset:
		p.page++
	case ShapeLimitOffset:
		p.offset += p.limit
	case ShapeCursorBased:
		next, ok := extractNextCursor(st.Cursor, body)
		if !ok {
			p.done = true
			return
		}
		p.cursor = next
	}
}

func extractNextCursor(c *CursorParameter, body string) (string, bool) {
	for _, pattern := range c.Patterns {
		if v, ok := pattern.Extract(body); ok {
			return v, true
		}
	}
	return "", false
}

// setParam writes a pagination parameter's current value to wherever the
// trained Request actually carries it: the query string, a parsed post-body
// (possibly nested, via a dotted path), or a raw post-body. This mirrors
// strategy.parameterExistsInRequest's resolution order, re-implemented here
// rather than imported since internal/strategy already imports this
// package. A name that resolves nowhere in the trained Request still lands
// in the query string, so a strategy parameter is never silently dropped.
func (p *Pager) setParam(name, value string) {
	if _, ok := p.src.Request.Query[name]; ok {
		p.query[name] = value
		return
	}

	parts := strings.Split(name, ".")
	if resolvesDottedPath(p.src.Request.PostBody, parts) {
		if p.body != nil {
			setDottedPath(p.body, parts, value)
			return
		}
		if len(p.rawBody) > 0 {
			if updated, err := sjson.SetBytes(p.rawBody, name, value); err == nil {
				p.rawBody = updated
				return
			}
		}
	}

	p.query[name] = value
}

// resolvesDottedPath reports whether parts names a reachable leaf in m,
// descending into nested objects one key per part.
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

// setDottedPath writes value into m at parts, creating intermediate nested
// objects as needed.
func setDottedPath(m map[string]interface{}, parts []string, value string) {
	if len(parts) == 1 {
		m[parts[0]] = value
		return
	}
	nested, ok := m[parts[0]].(map[string]interface{})
	if !ok {
		nested = make(map[string]interface{})
		m[parts[0]] = nested
	}
	setDottedPath(nested, parts[1:], value)
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
