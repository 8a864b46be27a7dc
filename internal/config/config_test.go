package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BROWSER_POOL_SIZE", "")
	t.Setenv("ANALYZER_MAX_STEPS", "")

	cfg := Load()
	if cfg.BrowserPoolSize != 3 {
		t.Errorf("BrowserPoolSize = %d, want 3", cfg.BrowserPoolSize)
	}
	if cfg.MaxSteps != 30 {
		t.Errorf("MaxSteps = %d, want 30", cfg.MaxSteps)
	}
	if !cfg.BrowserHeadless {
		t.Error("BrowserHeadless default = false, want true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANALYZER_MAX_STEPS", "10")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg := Load()
	if cfg.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want 10", cfg.MaxSteps)
	}
	if cfg.BrowserHeadless {
		t.Error("BrowserHeadless = true, want false after override")
	}
}
