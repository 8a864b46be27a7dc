// Package browser provides the controlled-page environment the Analyzer
// Loop drives: a pool of managed Chromium instances, stealth page
// creation, and the Session capability (navigate/screenshot/evaluate/
// click/response-subscription/close) the Analyzer consumes.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/oklog/ulid/v2"

	"github.com/sourcelens-io/sourcelens/internal/config"
)

var (
	// ErrPoolClosed is returned when trying to use a closed pool.
	ErrPoolClosed = errors.New("browser pool is closed")
)

// ManagedBrowser wraps a rod.Browser with pool management metadata.
type ManagedBrowser struct {
	ID           string
	Browser      *rod.Browser
	InUse        bool
	CreatedAt    time.Time
	LastUsedAt   time.Time
	RequestCount int
}

// Pool manages a pool of browser instances, each capable of hosting one
// analyze() run's Session at a time.
type Pool struct {
	mu       sync.RWMutex
	browsers map[string]*ManagedBrowser
	waiting  []chan *ManagedBrowser
	cfg      *config.Config
	logger   *slog.Logger
	closed   bool

	ready     bool
	readyChan chan struct{}
}

// NewPool creates a new browser pool.
func NewPool(cfg *config.Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		browsers:  make(map[string]*ManagedBrowser),
		waiting:   make([]chan *ManagedBrowser, 0),
		cfg:       cfg,
		logger:    logger.With("component", "browser_pool"),
		readyChan: make(chan struct{}),
	}
}

// Ready returns true if the pool has completed warmup.
func (p *Pool) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// WaitReady blocks until the pool is ready or ctx is cancelled.
func (p *Pool) WaitReady(ctx context.Context) error {
	select {
	case <-p.readyChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Warmup ensures Chromium is available and optionally pre-creates
// browsers, avoiding a first-request download delay.
func (p *Pool) Warmup(ctx context.Context, preCreate int) error {
	p.logger.Info("warming up browser pool")

	if p.cfg.ChromePath != "" {
		p.logger.Info("using custom Chrome path", "path", p.cfg.ChromePath)
	} else {
		browserPath, err := launcher.NewBrowser().Get()
		if err != nil {
			return err
		}
		p.logger.Info("chromium ready", "path", browserPath)
	}

	if preCreate > p.cfg.BrowserPoolSize {
		preCreate = p.cfg.BrowserPoolSize
	}
	for i := 0; i < preCreate; i++ {
		b, err := p.createBrowser(ctx)
		if err != nil {
			p.logger.Error("failed to pre-create browser", "error", err)
			return err
		}
		b.InUse = false
		p.mu.Lock()
		p.browsers[b.ID] = b
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.ready = true
	close(p.readyChan)
	p.mu.Unlock()
	return nil
}

// Acquire gets a browser from the pool, creating one if capacity allows,
// or blocking until one is released.
func (p *Pool) Acquire(ctx context.Context) (*ManagedBrowser, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	for _, b := range p.browsers {
		if !b.InUse && p.isHealthy(b) {
			b.InUse = true
			b.LastUsedAt = time.Now()
			p.mu.Unlock()
			return b, nil
		}
	}

	if len(p.browsers) < p.cfg.BrowserPoolSize {
		b, err := p.createBrowser(ctx)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.browsers[b.ID] = b
		p.mu.Unlock()
		return b, nil
	}

	waitChan := make(chan *ManagedBrowser, 1)
	p.waiting = append(p.waiting, waitChan)
	p.mu.Unlock()

	select {
	case b := <-waitChan:
		if b == nil {
			return nil, ErrPoolClosed
		}
		return b, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, ch := range p.waiting {
			if ch == waitChan {
				p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release returns a browser to the pool, recycling it first if it has
// aged out or handled too many requests.
func (p *Pool) Release(b *ManagedBrowser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.closeBrowser(b)
		return
	}

	b.InUse = false
	b.RequestCount++
	b.LastUsedAt = time.Now()

	if p.needsRecycle(b) {
		p.recycleBrowser(b)
		return
	}

	if len(p.waiting) > 0 {
		waitChan := p.waiting[0]
		p.waiting = p.waiting[1:]
		b.InUse = true
		b.LastUsedAt = time.Now()
		waitChan <- b
	}
}

// Close shuts down all browsers and closes the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, b := range p.browsers {
		p.closeBrowser(b)
	}
	p.browsers = make(map[string]*ManagedBrowser)

	for _, ch := range p.waiting {
		close(ch)
	}
	p.waiting = nil
}

// PoolStats reports current pool occupancy.
type PoolStats struct {
	Total     int
	InUse     int
	Available int
	MaxSize   int
	Waiting   int
	Ready     bool
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		Total:   len(p.browsers),
		MaxSize: p.cfg.BrowserPoolSize,
		Waiting: len(p.waiting),
		Ready:   p.ready,
	}
	for _, b := range p.browsers {
		if b.InUse {
			stats.InUse++
		} else {
			stats.Available++
		}
	}
	return stats
}

func (p *Pool) createBrowser(ctx context.Context) (*ManagedBrowser, error) {
	l := launcher.New()
	if p.cfg.ChromePath != "" {
		l = l.Bin(p.cfg.ChromePath)
	}

	l = l.
		Headless(p.cfg.BrowserHeadless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("disable-plugins-discovery").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	u, err := l.Launch()
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	p.logger.Info("browser created", "id", id)

	return &ManagedBrowser{
		ID:         id,
		Browser:    b,
		InUse:      true,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
	}, nil
}

func (p *Pool) isHealthy(b *ManagedBrowser) bool {
	if time.Since(b.CreatedAt) > p.cfg.BrowserMaxAge {
		return false
	}
	if b.RequestCount >= p.cfg.BrowserMaxRequests {
		return false
	}
	if !b.InUse && time.Since(b.LastUsedAt) > p.cfg.BrowserIdleTimeout {
		return false
	}

	defer func() { recover() }()
	_, err := b.Browser.Pages()
	return err == nil
}

func (p *Pool) needsRecycle(b *ManagedBrowser) bool {
	if time.Since(b.CreatedAt) > p.cfg.BrowserMaxAge {
		return true
	}
	return b.RequestCount >= p.cfg.BrowserMaxRequests
}

func (p *Pool) recycleBrowser(b *ManagedBrowser) {
	p.logger.Info("recycling browser", "id", b.ID, "age", time.Since(b.CreatedAt), "requests", b.RequestCount)

	p.closeBrowser(b)
	delete(p.browsers, b.ID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		newBrowser, err := p.createBrowser(ctx)
		if err != nil {
			p.logger.Error("failed to create replacement browser", "error", err)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed {
			p.closeBrowser(newBrowser)
			return
		}

		newBrowser.InUse = false
		p.browsers[newBrowser.ID] = newBrowser

		if len(p.waiting) > 0 {
			waitChan := p.waiting[0]
			p.waiting = p.waiting[1:]
			newBrowser.InUse = true
			newBrowser.LastUsedAt = time.Now()
			waitChan <- newBrowser
		}
	}()
}

func (p *Pool) closeBrowser(b *ManagedBrowser) {
	if b.Browser != nil {
		if err := b.Browser.Close(); err != nil {
			p.logger.Warn("error closing browser", "id", b.ID, "error", err)
		}
	}
	p.logger.Info("browser closed", "id", b.ID)
}

// StartCleanup runs a background goroutine that periodically recycles
// idle browsers, until ctx is cancelled.
func (p *Pool) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanupIdleBrowsers()
		}
	}
}

func (p *Pool) cleanupIdleBrowsers() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	var toRemove []string
	for id, b := range p.browsers {
		if !b.InUse && time.Since(b.LastUsedAt) > p.cfg.BrowserIdleTimeout {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		b := p.browsers[id]
		p.logger.Info("cleaning up idle browser", "id", id, "idle_time", time.Since(b.LastUsedAt))
		p.closeBrowser(b)
		delete(p.browsers, id)
	}
}
