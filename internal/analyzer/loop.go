package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sourcelens-io/sourcelens/internal/browser"
	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
	"github.com/sourcelens-io/sourcelens/internal/logging"
	"github.com/sourcelens-io/sourcelens/internal/matcher"
	"github.com/sourcelens-io/sourcelens/internal/source"
	"github.com/sourcelens-io/sourcelens/internal/strategy"
)

// Loop drives a single analyze() call: one browser session, one capture
// store, one Strategy Builder, across up to max_steps iterations.
type Loop struct {
	Session browser.Session
	LLM     llmclient.Client
	Store   *capture.Store
	Builder *strategy.Builder
	Logger  *slog.Logger
}

// New constructs a Loop. logger may be nil, in which case slog.Default is
// used.
func New(session browser.Session, llm llmclient.Client, store *capture.Store, builder *strategy.Builder, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{Session: session, LLM: llm, Store: store, Builder: builder, Logger: logger.With("component", "analyzer_loop")}
}

// Analyze runs the new -> vision_done -> {correlated | action_dispatched}
// -> {strategy_found | continue} state machine and returns the Source
// produced, if any. A nil, false result with a nil error is the
// well-formed negative result of a deadline or max_steps exhaustion; a
// non-nil error means a hard infra failure.
func (l *Loop) Analyze(ctx context.Context, query string, schema strategy.OutputSchema, maxSteps int, deadline time.Duration) (*source.Source, bool, error) {
	runID := ulid.Make().String()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx, l.Logger)

	// maxSteps is taken as given: max_steps=0 must return nothing without
	// invoking the LLM vision call at all, so it is not defaulted here.
	// Callers wanting the usual default of 30 pass it explicitly
	// (config.Config.MaxSteps already defaults to 30).
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	logger.Info("analysis starting", "event", "analysis:start", "status", "pending", "max_steps", maxSteps)

	for step := 0; step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			logger.Info("analysis deadline exceeded", "event", "analysis:end", "status", "failed", "reason", "deadline_exceeded")
			return nil, false, nil
		default:
		}

		stepLogger := logging.FromContext(logging.WithStep(ctx, step), logger)
		src, found, err := l.runStep(ctx, stepLogger, query, schema)
		if err != nil {
			return nil, false, err
		}
		if found {
			stepLogger.Info("analysis complete", "event", "analysis:end", "status", "success")
			return src, true, nil
		}
	}

	logger.Info("analysis exhausted max_steps", "event", "analysis:end", "status", "failed", "reason", "max_steps_exhausted")
	return nil, false, nil
}

// runStep executes one iteration of the state machine:
// new → vision_done → {correlated | action_dispatched} → {strategy_found | continue}.
func (l *Loop) runStep(ctx context.Context, logger *slog.Logger, query string, schema strategy.OutputSchema) (*source.Source, bool, error) {
	stepResult, err := l.visionStep(ctx, logger, query)
	if err != nil {
		logger.Warn("step failed after retries", "event", "step:vision", "status", "failed", "reason", err.Error())
		if isHardInfraFailure(err) {
			return nil, false, err
		}
		return nil, false, nil // a soft failure just advances the loop
	}

	chosen, skipPerformed := l.correlate(ctx, logger, stepResult.TextSections)

	if !skipPerformed && chosen == nil {
		if err := l.dispatchAction(stepResult); err != nil {
			logger.Warn("action dispatch failed", "event", "step:action", "status", "failed", "reason", err.Error())
		} else {
			logger.Info("action dispatched", "event", "step:action", "status", "success", "action", string(stepResult.Action))
		}
	}

	if chosen == nil {
		return nil, false, nil
	}

	src, ok, err := l.Builder.Build(ctx, *chosen, l.Store.Snapshot(), schema)
	if err != nil {
		logger.Warn("strategy build fatal error", "event", "step:strategy", "status", "failed", "reason", err.Error())
		return nil, false, nil // fatal for this response only; loop continues
	}
	if !ok {
		logger.Info("strategy build miss; continuing", "event", "step:strategy", "status", "pending")
		return nil, false, nil
	}
	return src, true, nil
}

// visionStep captures a screenshot and requests a StepResult, retrying
// transient failures up to stepMaxAttempts times with brief backoff.
func (l *Loop) visionStep(ctx context.Context, logger *slog.Logger, query string) (llmclient.StepResult, error) {
	var lastErr error
	for attempt := 0; attempt < stepMaxAttempts; attempt++ {
		shot, err := l.Session.Screenshot()
		if err != nil {
			lastErr = err
			l.wait(ctx, attempt)
			continue
		}
		result, _, err := l.LLM.Step(ctx, query, shot)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !llmclient.IsRetryable(err) {
			return llmclient.StepResult{}, err
		}
		l.wait(ctx, attempt)
	}
	return llmclient.StepResult{}, lastErr
}

func (l *Loop) wait(ctx context.Context, attempt int) {
	t := time.NewTimer(backoffFor(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// correlate resolves the current viewport's text sections against both
// the live DOM and the capture history. chosen is non-nil only when a
// response at or above matchThreshold was found. skipPerformed reports
// whether the "skip-similar-content" scroll-past happened, which ends the
// step regardless of correlation outcome.
func (l *Loop) correlate(ctx context.Context, logger *slog.Logger, sections []string) (*capture.CapturedResponse, bool) {
	if len(sections) == 0 {
		return nil, false
	}

	parentSelector, parentOK, err := l.Session.FindCommonParent(sections, commonParentThreshold)
	if err != nil {
		logger.Debug("find_common_parent failed", "event", "step:correlate", "status", "failed", "reason", err.Error())
	}

	var best *capture.CapturedResponse
	bestRatio := 0.0
	for _, c := range l.Store.Snapshot() {
		if c.Request.Kind == capture.KindBlocked {
			continue // challenge pages are excluded from correlation entirely
		}
		ratio := matcher.MatchRatio(sections, c.Body)
		if ratio >= matchThreshold && ratio > bestRatio {
			cc := c
			best = &cc
			bestRatio = ratio
		}
	}

	if best != nil && best.Request.Kind == capture.KindSSR && parentOK {
		l.Store.AttachPreprocessor(best.Ordinal, capture.Preprocessor{Selector: parentSelector})
		if refreshed, ok := l.Store.Get(best.Ordinal); ok {
			best = &refreshed
		}
	}

	skipPerformed := false
	if parentOK {
		if childSelector, ok, err := l.Session.GetLastVisibleChild(parentSelector); err == nil && ok {
			if _, err := l.Session.ScrollToElement(childSelector); err == nil {
				skipPerformed = true
				logger.Info("skip-similar-content scroll", "event", "step:skip", "status", "success", "selector", childSelector)
			}
		}
	}

	if best != nil {
		logger.Info("correlation matched a response", "event", "step:correlate", "status", "success", "ratio", bestRatio, "ordinal", best.Ordinal)
	}
	return best, skipPerformed
}

// dispatchAction dispatches the vision model's requested action in
// priority order: close/load actions click when a point is given,
// otherwise every action falls back to a directional scroll.
func (l *Loop) dispatchAction(step llmclient.StepResult) error {
	switch step.Action {
	case llmclient.ActionClosePopup, llmclient.ActionLoadMore:
		if step.ClickPoint != nil {
			return l.Session.Click(step.ClickPoint.X, step.ClickPoint.Y)
		}
		_, err := l.Session.ScrollToNextView(string(step.Direction))
		return err
	case llmclient.ActionSkipToContent:
		_, err := l.Session.ScrollToNextView(string(step.Direction))
		return err
	default:
		_, err := l.Session.ScrollToNextView(string(step.Direction))
		return err
	}
}

// isHardInfraFailure reports whether err represents an unrecoverable
// condition (the browser crashed) rather than a retry-then-advance
// condition. The Analyzer has no direct way to probe
// browser-process liveness from here; ErrPoolClosed from internal/browser
// is the one case treated as hard.
func isHardInfraFailure(err error) bool {
	return errors.Is(err, browser.ErrPoolClosed)
}
