package browser

import (
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/sourcelens-io/sourcelens/internal/capture"
)

// Session is the browser capability the Analyzer consumes from the
// environment: navigate, screenshot, evaluate, click, a response-event
// subscription, and close. It must bypass CSP sufficiently to install the
// Browser Plugin and must preserve captured response bodies.
type Session interface {
	Navigate(url string) error
	Screenshot() ([]byte, error)
	Click(x, y float64) error
	ScrollToNextView(direction string) (bool, error)
	FindCommonParent(sections []string, threshold float64) (string, bool, error)
	GetLastVisibleChild(parentSelector string) (string, bool, error)
	ScrollToElement(selector string) (bool, error)
	OuterHTML(selector string) (string, bool, error)
	Close() error
}

// RodSession is the concrete rod-backed Session. One RodSession is created
// per analyze() call against a freshly acquired pool browser and a fresh
// stealth page; it owns the capture.Store for the run's duration.
type RodSession struct {
	browser *ManagedBrowser
	page    *rod.Page
	store   *capture.Store
	logger  *slog.Logger
}

// NewSession acquires a fresh stealth page on b, installs the Browser
// Plugin, and wires Response Capture into store.
func NewSession(b *ManagedBrowser, store *capture.Store, logger *slog.Logger) (*RodSession, error) {
	if logger == nil {
		logger = slog.Default()
	}
	page, err := CreateStealthPage(b.Browser)
	if err != nil {
		return nil, err
	}
	if err := InstallPlugin(page); err != nil {
		page.Close()
		return nil, err
	}

	s := &RodSession{
		browser: b,
		page:    page,
		store:   store,
		logger:  logger.With("component", "browser_session"),
	}
	s.startCapture()
	return s, nil
}

// Navigate loads url. The page's own DOM is already live by the time this
// returns; Response Capture (capture.Store.Add) treats the first SSR entry
// as redundant against it and skips it.
func (s *RodSession) Navigate(url string) error {
	return s.page.Navigate(url)
}

// Screenshot captures the current viewport as PNG bytes.
func (s *RodSession) Screenshot() ([]byte, error) {
	return s.page.Screenshot(false, nil)
}

// Click performs a left click at normalized viewport coordinates.
func (s *RodSession) Click(x, y float64) error {
	metrics, err := proto.PageGetLayoutMetrics{}.Call(s.page)
	if err != nil {
		return err
	}
	w := float64(metrics.CSSLayoutViewport.ClientWidth)
	h := float64(metrics.CSSLayoutViewport.ClientHeight)
	point := proto.Point{X: x * w, Y: y * h}
	if err := s.page.Mouse.MoveTo(point); err != nil {
		return err
	}
	return s.page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (s *RodSession) ScrollToNextView(direction string) (bool, error) {
	return ScrollToNextView(s.page, direction)
}

func (s *RodSession) FindCommonParent(sections []string, threshold float64) (string, bool, error) {
	return FindCommonParent(s.page, sections, threshold)
}

func (s *RodSession) GetLastVisibleChild(parentSelector string) (string, bool, error) {
	return GetLastVisibleChild(s.page, parentSelector)
}

func (s *RodSession) ScrollToElement(selector string) (bool, error) {
	return ScrollToElement(s.page, selector)
}

func (s *RodSession) OuterHTML(selector string) (string, bool, error) {
	return OuterHTML(s.page, selector)
}

// Close releases the page back to its browser; the browser itself is
// released to the pool by the caller that acquired it.
func (s *RodSession) Close() error {
	return s.page.Close()
}

// startCapture subscribes to network completions and records each
// non-filtered response into s.store.
func (s *RodSession) startCapture() {
	go s.page.EachEvent(func(e *proto.NetworkResponseReceived) {
		s.handleResponse(e)
	})()
}

func (s *RodSession) handleResponse(e *proto.NetworkResponseReceived) {
	kind := classifyResourceType(e.Type)
	if kind == "" {
		return // analytics/asset noise by resource type; capture.IsNoise also filters by URL
	}

	body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(s.page)
	if err != nil {
		s.logger.Debug("failed to read response body", "url", e.Response.URL, "error", err)
		return
	}

	// rod's NetworkResponseReceived does not itself carry the request
	// method; pairing it with the matching NetworkRequestWillBeSent event
	// is left to a fuller implementation, so GET is assumed by default here
	// (corrected to POST below when the request turns out to have carried a
	// body).
	req := capture.Request{
		Method:  "GET",
		URL:     e.Response.URL,
		Headers: headersToMap(e.Response.Headers),
		Kind:    kind,
		Query:   parseQueryParams(e.Response.URL),
	}

	// A GET never has post data; fetching it unconditionally and keying off
	// whether anything comes back is simpler than also tracking method via
	// NetworkRequestWillBeSent just to decide whether to ask.
	if postData, err := (proto.NetworkGetRequestPostData{RequestID: e.RequestID}).Call(s.page); err == nil && postData.PostData != "" {
		req.Method = "POST"
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(postData.PostData), &parsed); err == nil {
			req.PostBody = parsed
		} else {
			req.RawPostBody = []byte(postData.PostData)
		}
	}

	s.store.Add(req, body.Body)
}

// parseQueryParams recovers the query-string parameters of a captured
// response URL as a flat map, the shape capture.ExtractCandidates and a
// replayed source.Pager both operate on. A malformed URL yields no
// parameters rather than an error, since a capture.Request is still worth
// storing without them.
func parseQueryParams(rawURL string) map[string]string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	values := parsed.Query()
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func classifyResourceType(t proto.NetworkResourceType) capture.Kind {
	switch t {
	case proto.NetworkResourceTypeXHR, proto.NetworkResourceTypeFetch:
		return capture.KindAjax
	case proto.NetworkResourceTypeDocument:
		return capture.KindSSR
	default:
		return ""
	}
}

func headersToMap(h proto.NetworkHeaders) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v.String()
	}
	return out
}
