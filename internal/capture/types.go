// Package capture implements Response Capture: interception of network
// completions on a controlled page, filtering of analytics/asset noise,
// and arrival-ordered storage of the responses the Analyzer and Strategy
// Builder consult.
package capture

// Kind classifies a captured response by how it was produced.
type Kind string

const (
	// KindAjax tags an XHR/fetch response.
	KindAjax Kind = "ajax"
	// KindSSR tags the initial document HTML of a top-level navigation.
	KindSSR Kind = "ssr"
	// KindBlocked tags an SSR capture whose body matches a known
	// bot-protection challenge-page signature. It is excluded from text
	// correlation so the Analyzer never "matches" a challenge page and
	// mints a Source that only ever serves challenge HTML. See
	// internal/protection.
	KindBlocked Kind = "blocked"
)

// Request is an HTTP request template, as captured or as later replayed by
// a Source's pagination strategy.
type Request struct {
	Method string
	URL    string
	// Headers of a recorded capture are filtered: hop-by-hop and HTTP/2
	// pseudo-headers (":authority", ":method", ...) are stripped by
	// Store.Add before the Request is stored.
	Headers map[string]string
	// Query holds named query-string parameters, independently addressable
	// so a pagination strategy can mutate one name without reserializing
	// the rest of the URL.
	Query map[string]string
	// PostBody holds a parsed JSON object body, if the request had one.
	// Nil for GET requests and requests with a non-JSON body.
	PostBody map[string]interface{}
	// RawPostBody holds the body bytes when PostBody could not be parsed
	// as a JSON object (still useful to a generated extraction routine
	// that expects raw bytes).
	RawPostBody []byte
	Kind        Kind
}

// Preprocessor is a content transform applied to a raw body before it is
// handed to extraction code. The only defined variant reduces a body to
// the outer HTML of the first element matching a CSS selector.
type Preprocessor struct {
	Selector string
}

// Apply returns the preprocessed body. sel is expected to implement the
// outer-HTML lookup; callers in internal/strategy and internal/source
// provide concrete selector evaluation. Apply itself
// only carries the policy: "original body if nothing matches."
func (p Preprocessor) Apply(body string, lookup func(selector string) (string, bool)) string {
	if p.Selector == "" || lookup == nil {
		return body
	}
	if outer, ok := lookup(p.Selector); ok && outer != "" {
		return outer
	}
	return body
}

// CapturedResponse pairs a Request with its decoded response body, an
// arrival ordinal, and an optional late-attached preprocessor.
type CapturedResponse struct {
	Request  Request
	Body     string
	Ordinal  int
	Preproc  *Preprocessor
	bodyHash string
}

// IdentityKey is the (method, URL, body-hash) tuple used to coalesce
// duplicate captures: requests sharing both an identity tuple and a body
// hash are the same capture.
func (c CapturedResponse) IdentityKey() string {
	return c.Request.Method + " " + c.Request.URL + "#" + c.bodyHash
}

// PreprocessedBody returns Body run through Preproc (if attached), using
// lookup to resolve the preprocessor's selector against this capture's own
// body.
func (c CapturedResponse) PreprocessedBody(lookup func(selector, body string) (string, bool)) string {
	if c.Preproc == nil {
		return c.Body
	}
	return c.Preproc.Apply(c.Body, func(sel string) (string, bool) {
		return lookup(sel, c.Body)
	})
}
