package llmclient

import "testing"

func TestNewAnthropicClientRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicClient("", "claude-sonnet-4-5", 0, 0, nil)
	if err != ErrMissingAPIKey {
		t.Errorf("NewAnthropicClient(no key) err = %v, want ErrMissingAPIKey", err)
	}
}

func TestNewAnthropicClientDefaults(t *testing.T) {
	c, err := NewAnthropicClient("sk-test", "claude-sonnet-4-5", 0, 0, nil)
	if err != nil {
		t.Fatalf("NewAnthropicClient: %v", err)
	}
	if c.retries != 3 {
		t.Errorf("default retries = %d, want 3", c.retries)
	}
	if c.timeout == 0 {
		t.Error("default timeout = 0, want a positive default")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate(short) = %q, want unchanged", got)
	}
	if got := truncate("hello world", 5); got != "hello" {
		t.Errorf("truncate(long) = %q, want %q", got, "hello")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrTransient) {
		t.Error("ErrTransient should be retryable")
	}
	if !IsRetryable(ErrRateLimited) {
		t.Error("ErrRateLimited should be retryable")
	}
	if IsRetryable(ErrContentRefusal) {
		t.Error("ErrContentRefusal should not be retryable")
	}
	if IsRetryable(ErrMissingAPIKey) {
		t.Error("ErrMissingAPIKey should not be retryable")
	}
}
