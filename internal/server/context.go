package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/petrel-mail/petrel/internal/auth"
	"github.com/petrel-mail/petrel/internal/datamark"
	"github.com/petrel-mail/petrel/internal/instrumentation"
	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/logging"
	"github.com/petrel-mail/petrel/internal/policy"
	"github.com/petrel-mail/petrel/internal/storage"
)

// ServerContext holds the shared state for the MCP server
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	sessionURL string
	tokens     auth.TokenProvider
	clients    map[string]*jmap.Client // Maps account identity to JMAP client

	store  storage.Store
	engine *policy.Engine
	marks  *datamark.Session

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// Config carries the collaborators a ServerContext needs.
type Config struct {
	// SessionURL is the JMAP session resource of the mail provider.
	SessionURL string

	// Tokens resolves per-account provider access tokens.
	Tokens auth.TokenProvider

	// Store backs the permissions config and action-URL nonces.
	Store storage.Store

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// NewServerContext creates a new server context. Clients are created lazily
// on first use per account, so a missing token at startup is not an error.
func NewServerContext(ctx context.Context, config Config) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := config.Store
	if store == nil {
		store = storage.NewMemoryStore()
	}

	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		sessionURL: config.SessionURL,
		tokens:     config.Tokens,
		clients:    make(map[string]*jmap.Client),
		store:      store,
		engine:     policy.NewEngine(store, policy.WithLogger(logger)),
		marks:      datamark.NewSession(),
		logger:     logger,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// SessionURL returns the JMAP session resource URL.
func (sc *ServerContext) SessionURL() string {
	return sc.sessionURL
}

// ClientForAccount returns the JMAP client for a specific account.
// Creates and caches the client if it doesn't exist yet.
// Returns nil if the account has no token or session discovery fails.
func (sc *ServerContext) ClientForAccount(account string) *jmap.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.clients[account]; ok {
		return client
	}

	if sc.tokens == nil || !sc.tokens.HasTokenForAccount(account) {
		return nil
	}

	token, err := sc.tokens.GetTokenForAccount(sc.ctx, account)
	if err != nil {
		sc.logger.Warn("failed to resolve token for account",
			logging.UserHash(account), logging.Err(err))
		return nil
	}

	client, err := jmap.NewClient(sc.ctx, sc.sessionURL, token.AccessToken)
	if err != nil {
		// Re-attempted on next use; session discovery can fail transiently.
		sc.logger.Warn("failed to create JMAP client for account",
			logging.UserHash(account), logging.Err(err))
		return nil
	}

	sc.clients[account] = client
	return client
}

// SetClientForAccount sets the JMAP client for a specific account
func (sc *ServerContext) SetClientForAccount(account string, client *jmap.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.clients[account] = client
}

// DropClientForAccount removes a cached client, forcing re-creation on the
// next use. Called when a client's token stops validating.
func (sc *ServerContext) DropClientForAccount(account string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.clients, account)
}

// Store returns the durable KV store.
func (sc *ServerContext) Store() storage.Store {
	return sc.store
}

// PolicyEngine returns the permission policy engine.
func (sc *ServerContext) PolicyEngine() *policy.Engine {
	return sc.engine
}

// Marks returns the process-wide datamarking session.
func (sc *ServerContext) Marks() *datamark.Session {
	return sc.marks
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetMetrics sets the metrics recorder used by tool instrumentation
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder (may be nil if not configured)
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger used by tool instrumentation
func (sc *ServerContext) SetAuditLogger(a *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = a
}

// AuditLogger returns the audit logger (may be nil if not configured)
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()

	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			sc.logger.Warn("failed to close store", logging.Err(err))
		}
	}
	return nil
}
