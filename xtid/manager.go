package xtid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go-xclient/internal/httpclient"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Fetcher loads the home page and bundle.
	// Default: NewFetcher over a Chrome-fingerprinted http.Client.
	Fetcher *Fetcher

	// Parser extracts the signing material. Default: DefaultParser().
	Parser *Parser

	// RefreshInterval is the maximum age of a SigningContext before it is rebuilt.
	RefreshInterval time.Duration

	// RetryInterval is the minimum spacing between refresh attempts while a
	// stale context is still usable.
	RetryInterval time.Duration

	// FetchTimeout bounds one full refresh (home page, migration, bundle).
	FetchTimeout time.Duration
}

func (cfg *ManagerConfig) defaults() {
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewFetcher(HTTPDoer{Client: httpclient.New(cfg.FetchTimeout)})
	}
	if cfg.Parser == nil {
		cfg.Parser = DefaultParser()
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 30 * time.Minute
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = time.Minute
	}
}

// Manager caches the SigningContext and rebuilds it every RefreshInterval.
// Thread-safe. Falls back to the previous context when a refresh fails.
type Manager struct {
	cfg ManagerConfig

	mu          sync.RWMutex
	sc          *SigningContext
	lastRefresh time.Time

	group   singleflight.Group
	limiter *rate.Limiter
}

// NewManager creates a transaction id manager. Call Initialize before GenerateID
// to surface setup errors early; GenerateID initializes lazily otherwise.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.RetryInterval), 1),
	}
}

// Initialize fetches x.com and the ondemand.s bundle and replaces the current
// SigningContext. Concurrent callers share one fetch, which is bounded by
// FetchTimeout rather than by any single caller's ctx; a caller whose ctx ends
// first returns ctx.Err() while the fetch continues for the others.
func (m *Manager) Initialize(ctx context.Context) error {
	ch := m.group.DoChan("init", func() (any, error) {
		return nil, m.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	sc, err := Init(ctx, m.cfg.Fetcher, m.cfg.Parser)
	if err != nil {
		return err
	}
	m.store(sc, time.Now())

	prefix := sc.animationKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	slog.Info("xtid: initialized",
		slog.String("anim_key", prefix+"..."),
		slog.Int("row_index", sc.rowIndex),
		slog.Int("key_indices", len(sc.keyByteIndices)))
	return nil
}

func (m *Manager) store(sc *SigningContext, at time.Time) {
	m.mu.Lock()
	m.sc = sc
	m.lastRefresh = at
	m.mu.Unlock()
}

// Context returns the current SigningContext, or nil before the first successful Initialize.
func (m *Manager) Context() *SigningContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sc
}

func (m *Manager) current() (*SigningContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stale := m.sc == nil || time.Since(m.lastRefresh) > m.cfg.RefreshInterval
	return m.sc, stale
}

// GenerateID returns a new x-client-transaction-id for the given HTTP method and URL path.
// Stale keys are refreshed first; a failed refresh keeps the old keys.
func (m *Manager) GenerateID(ctx context.Context, method, path string) (string, error) {
	sc, stale := m.current()
	if stale && (sc == nil || m.limiter.Allow()) {
		if err := m.Initialize(ctx); err != nil {
			if sc == nil {
				return "", fmt.Errorf("%w: %w", ErrNotInitialized, err)
			}
			slog.Warn("xtid: refresh failed, using stale keys", slog.Any("error", err))
		}
		sc, _ = m.current()
	}

	if sc == nil {
		return "", ErrNotInitialized
	}
	return sc.GenerateID(method, path), nil
}
