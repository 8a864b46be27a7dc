// Package matcher implements fuzzy, Unicode-aware containment scoring
// between short vision-model text fragments and a captured response body.
package matcher

import (
	"regexp"
	"runtime"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// MatchThreshold is the fixed decision boundary a caller uses to treat a
// response as "the right one": at least half the sections must be
// confidently present.
const MatchThreshold = 0.5

// tokenRE splits normalized text into Unicode words: a leading letter run
// optionally followed by letters, digits or apostrophes, or a bare digit run.
var tokenRE = regexp.MustCompile(`[\p{L}][\p{L}\p{N}']*|\p{N}+`)

// stripPunct removes Unicode punctuation and symbol runes, used only when a
// caller wants fragments compared ignoring surface punctuation entirely.
var stripPunct = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}))

// Normalize applies NFKC normalization, case folding, width folding and
// whitespace collapse. When stripPunctuation is true, punctuation and symbol
// runes are also removed before tokenization.
func Normalize(s string, stripPunctuation bool) string {
	t := transform.Chain(norm.NFKC, cases.Fold(), width.Fold)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	if stripPunctuation {
		out, _, err = transform.String(stripPunct, out)
		if err != nil {
			// best effort; keep unstripped output
		}
	}
	return collapseWhitespace(out)
}

var wsRE = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(wsRE.ReplaceAllString(s, " "))
}

// Tokenize splits normalized text into word tokens.
func Tokenize(s string) []string {
	return tokenRE.FindAllString(s, -1)
}

// MatchRatio scores how confidently every section in sections is present,
// verbatim or fuzzily, inside haystack. Returns the mean per-section credit,
// in [0,1]. An empty sections list returns 1.0, matching the "nothing to
// confirm" convention used by callers that treat a zero-length assertion as
// vacuously true.
func MatchRatio(sections []string, haystack string) float64 {
	if len(sections) == 0 {
		return 1.0
	}

	normHay := Normalize(haystack, false)
	hayTokens := Tokenize(normHay)

	credits := make([]float64, len(sections))
	var g errgroup.Group
	g.SetLimit(max(1, runtime.GOMAXPROCS(0)))

	for i, section := range sections {
		i, section := i, section
		g.Go(func() error {
			credits[i] = sectionCredit(section, normHay, hayTokens)
			return nil
		})
	}
	g.Wait()

	var sum float64
	for _, c := range credits {
		sum += c
	}
	return sum / float64(len(sections))
}

func sectionCredit(section, normHay string, hayTokens []string) float64 {
	normSection := Normalize(section, false)
	if normSection == "" {
		// Zero-length section after normalization is skipped without penalty:
		// it contributes the neutral "fully satisfied" credit.
		return 1.0
	}

	if strings.Contains(normHay, normSection) {
		return 1.0
	}

	sectionTokens := Tokenize(normSection)
	if len(sectionTokens) == 0 || len(hayTokens) == 0 {
		return 0
	}

	var sum float64
	for _, tok := range sectionTokens {
		sum += bestTokenSimilarity(tok, hayTokens)
	}
	mean := sum / float64(len(sectionTokens))
	if mean > 0.8 {
		return mean
	}
	return 0
}

// bestTokenSimilarity returns the highest edit-distance-based similarity
// between tok and any token in haystack tokens.
func bestTokenSimilarity(tok string, hayTokens []string) float64 {
	best := 0.0
	for _, h := range hayTokens {
		if sim := tokenSimilarity(tok, h); sim > best {
			best = sim
			if best == 1.0 {
				break
			}
		}
	}
	return best
}

// tokenSimilarity is 1 - normalizedLevenshtein, an order-preserving
// edit-distance-based metric in [0,1].
func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein(ra, rb)
	return 1.0 - float64(dist)/float64(maxLen)
}

// levenshtein computes the classic edit distance between two rune slices
// using a two-row dynamic program. No ready-made edit-distance library
// appears anywhere in the retrieved example pack, so this is implemented
// directly against the standard library (see DESIGN.md).
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
