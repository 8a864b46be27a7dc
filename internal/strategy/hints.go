package strategy

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RepeatHint is a candidate array-shaped listing detected in an HTML body,
// fed into the extraction-code-synthesis prompt so the LLM is steered
// toward an array schema matching the page's real structure
// rather than guessing blind.
type RepeatHint struct {
	ArrayName string
	Count     int
}

// RepeatHinter scans a chosen capture's body (when it is HTML) for
// repeated card/list/table patterns, covering a handful of common listing
// shapes plus a generic fallback.
type RepeatHinter struct {
	// MinRepeats is the minimum element count before a pattern is reported.
	MinRepeats int
}

// NewRepeatHinter returns a hinter with the default repeat threshold.
func NewRepeatHinter() *RepeatHinter {
	return &RepeatHinter{MinRepeats: 3}
}

var selectorGroups = []struct {
	name      string
	selectors []string
}{
	{"products", []string{"[class*=product]", "[data-product]", "[itemtype*=Product]"}},
	{"articles", []string{"article", "[class*=post]", "[class*=article]"}},
	{"jobs", []string{"[class*=job]", "[class*=vacancy]", "[class*=position]"}},
	{"events", []string{"[class*=event]", "[class*=webinar]"}},
	{"items", []string{"[class*=card]", "[class*=tile]", "[class*=grid-item]"}},
}

// Hint inspects body as HTML and returns the best-supported repeat hint, if
// any met MinRepeats. A non-HTML body (JSON, plain text) yields no hint;
// JSON bodies carry their own array structure and need no steering.
func (h *RepeatHinter) Hint(body string) (RepeatHint, bool) {
	if !looksLikeHTML(body) {
		return RepeatHint{}, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return RepeatHint{}, false
	}

	best := RepeatHint{}
	for _, group := range selectorGroups {
		count := maxSelectorCount(doc, group.selectors)
		if count > best.Count {
			best = RepeatHint{ArrayName: group.name, Count: count}
		}
	}

	if best.Count == 0 {
		if liCount := doc.Find("li").Length(); liCount >= 5 {
			best = RepeatHint{ArrayName: "items", Count: liCount}
		} else if rowCount := doc.Find("tbody tr").Length(); rowCount > 0 {
			best = RepeatHint{ArrayName: "items", Count: rowCount}
		}
	}

	if best.Count < h.MinRepeats {
		return RepeatHint{}, false
	}
	return best, true
}

func maxSelectorCount(doc *goquery.Document, selectors []string) int {
	best := 0
	for _, sel := range selectors {
		// Count only the innermost matches, so a wrapper whose class also
		// matches (e.g. "product-grid" around "product-card"s) is not
		// counted as one of the repeated items.
		innermost := doc.Find(sel).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find(sel).Length() == 0
		})
		if n := innermost.Length(); n > best {
			best = n
		}
	}
	return best
}

func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<")
}
