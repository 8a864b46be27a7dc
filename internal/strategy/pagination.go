package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/cursor"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
	"github.com/sourcelens-io/sourcelens/internal/source"
)

// ErrNoPaginationDetected means classification produced no usable role
// assignment. This is not fatal to the overall analyze() call: the
// caller keeps the response and continues the loop.
var ErrNoPaginationDetected = errors.New("strategy: no pagination strategy detected")

const classifyMaxAttempts = 3

// detectPagination runs the full pagination-detection pipeline: candidate
// extraction, LLM classification (retried on malformed output), and shape
// assembly, followed by cursor-pattern training when the shape is
// cursor-based.
func detectPagination(ctx context.Context, llm llmclient.Client, chosen capture.CapturedResponse, history []capture.CapturedResponse) (source.Strategy, error) {
	candidates := capture.ExtractCandidates(chosen.Request)
	if len(candidates) == 0 {
		return source.Strategy{}, ErrNoPaginationDetected
	}

	names := make([]string, len(candidates))
	known := make(map[string]capture.CandidateParameter, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
		known[c.Name] = c
	}

	classification, err := classifyWithRetry(ctx, llm, names, chosen.Request.URL)
	if err != nil {
		return source.Strategy{}, err
	}

	roles := make(map[llmclient.PaginationRole]capture.CandidateParameter)
	for _, p := range classification.Parameters {
		c, ok := known[p.Name]
		if !ok {
			continue // not in the candidate set; ignore rather than trust a hallucinated name
		}
		if p.Role == llmclient.RoleNone {
			continue
		}
		roles[p.Role] = c
	}

	strat, err := assembleStrategy(roles)
	if err != nil {
		return source.Strategy{}, err
	}

	if strat.Shape == source.ShapeCursorBased {
		patterns, err := trainCursorPatterns(strat.Cursor.Name, roles[llmclient.RoleCursor].Value, chosen, history)
		if err != nil {
			return source.Strategy{}, err
		}
		strat.Cursor.Patterns = patterns
	}

	return strat, nil
}

func classifyWithRetry(ctx context.Context, llm llmclient.Client, names []string, requestContext string) (llmclient.ClassificationResult, error) {
	var lastErr error
	for attempt := 0; attempt < classifyMaxAttempts; attempt++ {
		result, _, err := llm.ClassifyParameters(ctx, names, requestContext)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return llmclient.ClassificationResult{}, fmt.Errorf("strategy: classification failed after %d attempts: %w", classifyMaxAttempts, lastErr)
}

// assembleStrategy maps classified roles onto one of the four shapes,
// rejecting when a mandatory role is missing.
func assembleStrategy(roles map[llmclient.PaginationRole]capture.CandidateParameter) (source.Strategy, error) {
	if len(roles) == 0 {
		return source.Strategy{}, ErrNoPaginationDetected
	}

	cursorParam, hasCursor := roles[llmclient.RoleCursor]
	pageParam, hasPage := roles[llmclient.RolePage]
	limitParam, hasLimit := roles[llmclient.RoleLimit]
	offsetParam, hasOffset := roles[llmclient.RoleOffset]

	switch {
	case hasCursor:
		return source.Strategy{
			Shape:  source.ShapeCursorBased,
			Cursor: &source.CursorParameter{Name: cursorParam.Name},
			Limit:  optionalNumberParam(hasLimit, limitParam),
		}, nil
	case hasPage && hasOffset:
		return source.Strategy{
			Shape:  source.ShapePageOffset,
			Page:   numberParam(pageParam),
			Offset: numberParam(offsetParam),
			Limit:  optionalNumberParam(hasLimit, limitParam),
		}, nil
	case hasPage && hasLimit:
		return source.Strategy{
			Shape: source.ShapePageBased,
			Page:  numberParam(pageParam),
			Limit: numberParam(limitParam),
		}, nil
	case hasLimit && hasOffset:
		return source.Strategy{
			Shape:  source.ShapeLimitOffset,
			Limit:  numberParam(limitParam),
			Offset: numberParam(offsetParam),
		}, nil
	default:
		return source.Strategy{}, ErrNoPaginationDetected
	}
}

func numberParam(c capture.CandidateParameter) *source.NumberParameter {
	return &source.NumberParameter{Name: c.Name, Default: atoiOrZero(c.Value)}
}

func optionalNumberParam(present bool, c capture.CandidateParameter) *source.NumberParameter {
	if !present {
		return nil
	}
	return numberParam(c)
}

func atoiOrZero(s string) int {
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// trainCursorPatterns invokes cursor pattern derivation on the captured
// cursor value against every other captured response body, keeping the
// union of patterns that successfully extract.
func trainCursorPatterns(cursorName, cursorValue string, chosen capture.CapturedResponse, history []capture.CapturedResponse) ([]cursor.Pattern, error) {
	var union []cursor.Pattern
	seen := make(map[string]bool)

	for _, other := range history {
		if other.Ordinal == chosen.Ordinal {
			continue
		}
		patterns, err := cursor.Derive(cursorValue, other.Body)
		if err != nil {
			continue
		}
		for _, p := range patterns {
			key := p.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			union = append(union, p)
		}
	}

	if len(union) == 0 {
		return nil, fmt.Errorf("strategy: cursor parameter %q produced no training patterns", cursorName)
	}
	return union, nil
}
