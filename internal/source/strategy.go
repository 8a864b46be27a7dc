package source

import "github.com/sourcelens-io/sourcelens/internal/cursor"

// Shape names one of the four pagination strategy shapes the Strategy
// Builder can assemble.
type Shape string

const (
	ShapePageBased   Shape = "page_based"
	ShapePageOffset  Shape = "page_offset"
	ShapeLimitOffset Shape = "limit_offset"
	ShapeCursorBased Shape = "cursor_based"
)

// NumberParameter names a query/body parameter that carries an integer
// pagination role (page, limit, or offset) and the value observed (or
// assumed) in the captured request that trained the strategy.
type NumberParameter struct {
	Name    string
	Default int
}

// CursorParameter names the parameter a cursor-based strategy writes the
// next page's cursor value into, plus the patterns trained against the
// capture history (internal/cursor.Derive), kept so Source.Generate can
// re-extract a fresh cursor from each page it fetches.
type CursorParameter struct {
	Name     string
	Patterns []cursor.Pattern
}

// Strategy is the pagination contract a Source advances on each call to
// Generate/Pager.Next. Only the role-specific fields relevant to Shape are
// populated; the rest are nil.
type Strategy struct {
	Shape Shape

	Page   *NumberParameter // ShapePageBased, ShapePageOffset
	Limit  *NumberParameter // ShapePageBased, ShapeLimitOffset; optional for ShapePageOffset, ShapeCursorBased
	Offset *NumberParameter // ShapePageOffset, ShapeLimitOffset

	Cursor *CursorParameter // ShapeCursorBased
}

// ParameterNames returns every named parameter this strategy touches. The
// Strategy Builder uses it to check that every strategy parameter name
// appears somewhere in the trained Request.
func (s Strategy) ParameterNames() []string {
	var names []string
	if s.Page != nil {
		names = append(names, s.Page.Name)
	}
	if s.Limit != nil {
		names = append(names, s.Limit.Name)
	}
	if s.Offset != nil {
		names = append(names, s.Offset.Name)
	}
	if s.Cursor != nil {
		names = append(names, s.Cursor.Name)
	}
	return names
}
