// Package logging provides a configured slog logger with:
//   - TTY detection for human-readable vs JSON output
//   - LOG_FORMAT env var override (text/json)
//   - LOG_LEVEL env var (debug/info/warn/error)
//   - Source file:line info
//   - Context-based run_id/step extraction for filtering
//   - Dynamic filter-based logging via slog-logfilter
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	logfilter "github.com/jmylchreest/slog-logfilter"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

const (
	// RunIDKey is the context key for the analyze() run identity (a ULID).
	RunIDKey ContextKey = "log_run_id"
	// StepKey is the context key for the current Analyzer Loop step index.
	StepKey ContextKey = "log_step"
)

// WithRunID adds a run ID to the context for logging.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithStep adds the current loop step index to the context for logging.
func WithStep(ctx context.Context, step int) context.Context {
	return context.WithValue(ctx, StepKey, step)
}

// GetRunID extracts the run ID from context.
func GetRunID(ctx context.Context) string {
	if v := ctx.Value(RunIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetStep extracts the current step index from context, or -1 if absent.
func GetStep(ctx context.Context) int {
	if v := ctx.Value(StepKey); v != nil {
		if s, ok := v.(int); ok {
			return s
		}
	}
	return -1
}

// FromContext returns a logger with run_id/step from context added as
// attributes. Use this at every structured log event in the Analyzer Loop
// so log lines can be correlated back to a single analyze() invocation.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}

	if runID := GetRunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	if step := GetStep(ctx); step >= 0 {
		logger = logger.With("step", step)
	}
	return logger
}

// registerContextExtractors registers the context extractors for filtering,
// so operators can target log filters at a single run without editing code.
func registerContextExtractors() {
	logfilter.RegisterContextExtractor("run_id", func(ctx context.Context) (string, bool) {
		if ctx == nil {
			return "", false
		}
		if v := ctx.Value(RunIDKey); v != nil {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
		return "", false
	})
}

// New creates a new configured logger using slog-logfilter.
// Format is determined by:
//  1. LOG_FORMAT env var (text/json)
//  2. TTY detection (text for TTY, JSON otherwise)
//
// Level is determined by LOG_LEVEL env var (debug/info/warn/error, default: info).
func New() *slog.Logger {
	logFormat := os.Getenv("LOG_FORMAT")
	format := "json"
	if logFormat == "text" || (logFormat == "" && isatty(os.Stdout)) {
		format = "text"
	}

	level := parseLogLevel(os.Getenv("LOG_LEVEL"))

	registerContextExtractors()

	return logfilter.New(
		logfilter.WithLevel(level),
		logfilter.WithFormat(format),
		logfilter.WithOutput(os.Stdout),
		logfilter.WithSource(true),
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault creates a new logger and sets it as the default slog logger.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// isatty returns true if the file is a terminal.
func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
