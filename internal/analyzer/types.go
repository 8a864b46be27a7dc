// Package analyzer implements the Analyzer Loop: the per-step vision
// prompt, action dispatch, response correlation, and termination against
// the Strategy Builder that together realize analyze().
package analyzer

import (
	"time"
)

// stepMaxAttempts bounds per-step retry of transient browser/LLM errors.
const stepMaxAttempts = 3

// matchThreshold is the correlation threshold applied to a response's
// match_ratio: a response is "the right one" only if at least half its
// sections are confidently present in a candidate capture.
const matchThreshold = 0.5

// commonParentThreshold is the default threshold passed to
// FindCommonParent.
const commonParentThreshold = 0.8

// DefaultMaxSteps mirrors config.Config.MaxSteps's default; callers
// ordinarily pass their own configured value.
const DefaultMaxSteps = 30

// stepBackoff is the brief delay between retries within a single step.
var stepBackoff = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 800 * time.Millisecond}

func backoffFor(attempt int) time.Duration {
	if attempt < 0 || attempt >= len(stepBackoff) {
		return stepBackoff[len(stepBackoff)-1]
	}
	return stepBackoff[attempt]
}
