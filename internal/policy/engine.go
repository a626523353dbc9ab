package policy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/petrel-mail/petrel/internal/storage"
)

// ConfigKey is the well-known store key holding the permissions
// configuration.
const ConfigKey = "permissions-config"

// DefaultCacheTTL bounds how stale a cached permissions config may be. A
// revoked caller keeps access for at most this long plus one in-flight
// request.
const DefaultCacheTTL = 5 * time.Minute

// Engine resolves caller configurations against the stored permissions
// config, caching the config process-wide. Safe for concurrent use; the
// refill path may race across requests after expiry, which is harmless
// because reloads are idempotent and the store is the source of truth.
type Engine struct {
	store storage.Store
	ttl   time.Duration

	mu        sync.RWMutex
	cached    *PermissionsConfig
	fetchedAt time.Time

	now    func() time.Time
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCacheTTL overrides the config cache TTL.
func WithCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.ttl = ttl }
}

// WithClock overrides the engine's clock for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine reading the permissions config from store.
func NewEngine(store storage.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the current permissions configuration, reading through the
// cache. A store without a config key yields the defaults. A store error
// falls back to the last cached config if one exists, otherwise the
// defaults: permission resolution must always produce a value, and a
// transient store outage must not lock every caller out (or, worse, be
// convertible into an allow by an unchecked error).
func (e *Engine) Config(ctx context.Context) *PermissionsConfig {
	e.mu.RLock()
	if e.cached != nil && e.now().Sub(e.fetchedAt) < e.ttl {
		cached := e.cached
		e.mu.RUnlock()
		return cached
	}
	e.mu.RUnlock()

	raw, found, err := e.store.Get(ctx, ConfigKey)
	if err != nil {
		e.logger.Warn("permissions config fetch failed, using cached or default config",
			slog.String("error", err.Error()))
		e.mu.RLock()
		defer e.mu.RUnlock()
		if e.cached != nil {
			return e.cached
		}
		return DefaultPermissionsConfig()
	}

	config := DefaultPermissionsConfig()
	if found {
		parsed, err := ParsePermissionsConfig(raw)
		if err != nil {
			e.logger.Error("stored permissions config is invalid, using defaults",
				slog.String("error", err.Error()))
		} else {
			config = parsed
		}
	}

	e.mu.Lock()
	e.cached = config
	e.fetchedAt = e.now()
	e.mu.Unlock()

	return config
}

// UserConfig resolves the configuration for one caller identity.
func (e *Engine) UserConfig(ctx context.Context, identity string) UserConfig {
	return ResolveUserConfig(e.Config(ctx), identity)
}

// Invalidate drops the cached config so the next read hits the store.
// Exposed for tests and for the admin surface to apply changes immediately.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cached = nil
	e.fetchedAt = time.Time{}
}
