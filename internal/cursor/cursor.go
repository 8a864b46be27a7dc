// Package cursor implements pagination cursor pattern extraction: given a
// sample cursor value and the response body it was observed in, it derives
// regular expressions that recover the same (or a successor) cursor from
// later response bodies.
package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNoExtractableCursor is returned when the cursor value yields no
// sub-cursor of sufficient length to anchor a pattern on.
var ErrNoExtractableCursor = errors.New("cursor: no extractable cursor")

// minSubCursorLen is the shortest leaf token considered distinctive enough
// to anchor a pattern on; short tokens (page numbers, booleans) produce
// patterns that match too many places in a typical response body.
const minSubCursorLen = 8

// maxDelimiterWidth bounds how many characters of surrounding context a
// pattern may use as prefix/suffix.
const maxDelimiterWidth = 20

// Pattern is a single recovered regular expression, compiled and ready to
// apply to later response bodies via Extract.
type Pattern struct {
	Regexp *regexp.Regexp
	// occurrenceIndex and width record the derivation order so patterns can
	// be returned sorted per the contract (rightmost occurrence first, then
	// ascending delimiter width).
	occurrenceIndex int
	width           int
}

// Extract applies the pattern to body and returns the captured value, or
// ("", false) if the pattern did not match.
func (p Pattern) Extract(body string) (string, bool) {
	m := p.Regexp.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	idx := p.Regexp.SubexpIndex("value")
	if idx < 0 || idx >= len(m) {
		return "", false
	}
	return m[idx], true
}

// ExtractFirst walks patterns in order and returns the first non-empty
// capture, succeeding on the first pattern that yields one.
func ExtractFirst(patterns []Pattern, body string) (string, bool) {
	for _, p := range patterns {
		if v, ok := p.Extract(body); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Derive produces the ordered set of patterns for cursorValue as observed
// in responseBody.
func Derive(cursorValue, responseBody string) ([]Pattern, error) {
	subCursors := subCursors(cursorValue)
	if len(subCursors) == 0 {
		return nil, ErrNoExtractableCursor
	}

	type candidate struct {
		pattern         *regexp.Regexp
		occurrenceIndex int
		width           int
	}

	seen := map[string]bool{}
	var candidates []candidate

	for _, sc := range subCursors {
		occurrences := occurrenceIndexes(responseBody, sc)
		// rightmost occurrence first
		for oi := len(occurrences) - 1; oi >= 0; oi-- {
			start := occurrences[oi]
			end := start + len(sc)
			for k := 1; k <= maxDelimiterWidth; k++ {
				prefixStart := start - k
				if prefixStart < 0 {
					break
				}
				suffixEnd := end + k
				if suffixEnd > len(responseBody) {
					break
				}
				prefix := responseBody[prefixStart:start]
				suffix := responseBody[end:suffixEnd]
				if prefix == "" || suffix == "" {
					continue
				}

				exprSrc := regexp.QuoteMeta(prefix) + `(?P<value>.*?)` + regexp.QuoteMeta(suffix)
				re, err := regexp.Compile(exprSrc)
				if err != nil {
					continue
				}
				if countDistinctMatches(re, responseBody) != 1 {
					continue
				}
				if seen[exprSrc] {
					continue
				}
				seen[exprSrc] = true
				candidates = append(candidates, candidate{
					pattern:         re,
					occurrenceIndex: oi,
					width:           k,
				})
			}
		}
	}

	if len(candidates) == 0 {
		return nil, ErrNoExtractableCursor
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].occurrenceIndex != candidates[j].occurrenceIndex {
			return candidates[i].occurrenceIndex > candidates[j].occurrenceIndex
		}
		return candidates[i].width < candidates[j].width
	})

	patterns := make([]Pattern, 0, len(candidates))
	for _, c := range candidates {
		patterns = append(patterns, Pattern{
			Regexp:          c.pattern,
			occurrenceIndex: c.occurrenceIndex,
			width:           c.width,
		})
	}
	return patterns, nil
}

// countDistinctMatches returns the number of distinct captured "value"
// groups the pattern matches in body; a pattern is only acceptable when
// it pins down exactly one value.
func countDistinctMatches(re *regexp.Regexp, body string) int {
	matches := re.FindAllStringSubmatch(body, -1)
	idx := re.SubexpIndex("value")
	if idx < 0 {
		return 0
	}
	distinct := map[string]bool{}
	for _, m := range matches {
		if idx < len(m) {
			distinct[m[idx]] = true
		}
	}
	return len(distinct)
}

// occurrenceIndexes returns the start offsets of every non-overlapping,
// left-to-right occurrence of sub in body.
func occurrenceIndexes(body, sub string) []int {
	var idxs []int
	start := 0
	for {
		i := strings.Index(body[start:], sub)
		if i < 0 {
			break
		}
		idxs = append(idxs, start+i)
		start = start + i + len(sub)
	}
	return idxs
}

// subCursors derives the leaf sub-cursor tokens from a cursor value: if it
// parses as JSON, its string/number leaves of sufficient length; otherwise
// the whole value, if long enough.
func subCursors(cursorValue string) []string {
	var parsed interface{}
	if err := json.Unmarshal([]byte(cursorValue), &parsed); err == nil {
		var leaves []string
		collectLeaves(parsed, &leaves)
		if len(leaves) > 0 {
			return leaves
		}
		return nil
	}

	if len(cursorValue) >= minSubCursorLen {
		return []string{cursorValue}
	}
	return nil
}

func collectLeaves(v interface{}, out *[]string) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectLeaves(t[k], out)
		}
	case []interface{}:
		for _, e := range t {
			collectLeaves(e, out)
		}
	case string:
		if len(t) >= minSubCursorLen {
			*out = append(*out, t)
		}
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if len(s) >= minSubCursorLen {
			*out = append(*out, s)
		}
	}
}

// String renders a pattern for logging/debugging.
func (p Pattern) String() string {
	return fmt.Sprintf("/%s/ (occurrence=%d, width=%d)", p.Regexp.String(), p.occurrenceIndex, p.width)
}
