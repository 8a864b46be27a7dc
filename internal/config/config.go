// Package config handles application configuration for the Analyzer.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-derived settings the Analyzer needs to run.
// It carries only what this repo's components consume directly; an
// orchestrating service's own config (billing, auth, storage, ...) is out
// of scope here.
type Config struct {
	// Browser pool
	BrowserPoolSize      int
	BrowserHeadless      bool
	BrowserIdleTimeout   time.Duration
	BrowserLaunchTimeout time.Duration
	BrowserMaxAge        time.Duration
	BrowserMaxRequests   int
	ChromePath           string

	// LLM provider
	AnthropicAPIKey string
	AnthropicModel  string
	LLMCallTimeout  time.Duration
	LLMMaxRetries   int

	// Analyzer Loop
	MaxSteps        int
	AnalyzeDeadline time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables: read, fall back
// to a sane default, never panic.
func Load() *Config {
	return &Config{
		BrowserPoolSize:      getEnvInt("BROWSER_POOL_SIZE", 3),
		BrowserHeadless:      getEnvBool("BROWSER_HEADLESS", true),
		BrowserIdleTimeout:   getEnvDuration("BROWSER_IDLE_TIMEOUT", 5*time.Minute),
		BrowserLaunchTimeout: getEnvDuration("BROWSER_LAUNCH_TIMEOUT", 30*time.Second),
		BrowserMaxAge:        getEnvDuration("BROWSER_MAX_AGE", 30*time.Minute),
		BrowserMaxRequests:   getEnvInt("BROWSER_MAX_REQUESTS", 100),
		ChromePath:           getEnv("CHROME_PATH", ""),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		LLMCallTimeout:  getEnvDuration("LLM_CALL_TIMEOUT", 60*time.Second),
		LLMMaxRetries:   getEnvInt("LLM_MAX_RETRIES", 3),

		MaxSteps:        getEnvInt("ANALYZER_MAX_STEPS", 30),
		AnalyzeDeadline: getEnvDuration("ANALYZER_DEADLINE", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
