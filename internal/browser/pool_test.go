package browser

import (
	"context"
	"testing"
	"time"

	"github.com/sourcelens-io/sourcelens/internal/config"
)

func TestPoolStats(t *testing.T) {
	cfg := &config.Config{BrowserPoolSize: 3, BrowserMaxAge: time.Hour, BrowserMaxRequests: 100, BrowserIdleTimeout: time.Minute}
	p := NewPool(cfg, nil)

	p.browsers["a"] = &ManagedBrowser{ID: "a", InUse: true}
	p.browsers["b"] = &ManagedBrowser{ID: "b", InUse: false}

	stats := p.Stats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.InUse != 1 {
		t.Errorf("InUse = %d, want 1", stats.InUse)
	}
	if stats.Available != 1 {
		t.Errorf("Available = %d, want 1", stats.Available)
	}
	if stats.MaxSize != 3 {
		t.Errorf("MaxSize = %d, want 3", stats.MaxSize)
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	cfg := &config.Config{BrowserPoolSize: 1}
	p := NewPool(cfg, nil)
	p.Close()
	p.Close() // must not panic on double close
}

func TestPoolAcquireAfterCloseFails(t *testing.T) {
	cfg := &config.Config{BrowserPoolSize: 1}
	p := NewPool(cfg, nil)
	p.Close()

	_, err := p.Acquire(context.Background())
	if err != ErrPoolClosed {
		t.Errorf("Acquire after Close err = %v, want ErrPoolClosed", err)
	}
}
