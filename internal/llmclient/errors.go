package llmclient

import (
	"errors"
	"fmt"
)

// Sentinel errors for the LLM failure kinds the Analyzer classifies:
// transient network, rate-limit, content-policy refusal, malformed
// structured output.
var (
	ErrTransient       = errors.New("llmclient: transient provider error")
	ErrRateLimited     = errors.New("llmclient: rate limited")
	ErrContentRefusal  = errors.New("llmclient: content policy refusal")
	ErrMalformedOutput = errors.New("llmclient: malformed structured output")
	ErrMissingAPIKey   = errors.New("llmclient: no API key configured")
)

// CallError wraps a provider error with enough context for callers and log
// lines to classify it without re-parsing.
type CallError struct {
	Err        error
	StatusCode int
	Provider   string
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llmclient: %s call failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llmclient: %s call failed: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error kind is one the caller should
// retry (transient network, rate limit, malformed structured output)
// rather than treat as terminal for
// the current step.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrMalformedOutput)
}
