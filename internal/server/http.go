package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/auth"
	"github.com/petrel-mail/petrel/internal/gateway"
	"github.com/petrel-mail/petrel/internal/instrumentation"
	"github.com/petrel-mail/petrel/internal/jmap"
)

// HTTPConfig holds configuration for the OAuth-gated HTTP transport.
type HTTPConfig struct {
	// BaseURL is the public base URL of this instance, used as the RFC 9728
	// resource identifier and as the base for signed action links.
	BaseURL string

	// AuthorizationServers names the OAuth authorization servers clients
	// should use. For a JMAP provider this is the provider itself.
	AuthorizationServers []string

	// ActionKey signs one-shot action URLs. Leaving it empty disables the
	// /action endpoint.
	ActionKey []byte

	// ActionAccount is the account identity whose mailbox digest action
	// links operate on.
	ActionAccount string

	// DisableStreaming turns off streamable responses on the MCP endpoint.
	DisableStreaming bool
}

// HTTPServer wraps an MCP server with OAuth 2.1 bearer authentication and
// the permission gateway. It implements RFC 9728 Protected Resource Metadata
// so MCP clients can discover the provider as the authorization server.
type HTTPServer struct {
	mcpServer   *mcpserver.MCPServer
	sc          *ServerContext
	authHandler *auth.Handler
	gw          *gateway.Gateway
	health      *HealthChecker
	httpServer  *http.Server
	config      HTTPConfig
}

// NewHTTPServer creates an OAuth-gated HTTP server for MCP. Bearer tokens
// are validated against the JMAP session endpoint; the authenticated email
// becomes the identity the permission gateway filters on.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, sc *ServerContext, config HTTPConfig) (*HTTPServer, error) {
	if err := validateHTTPSRequirement(config.BaseURL); err != nil {
		return nil, err
	}

	verifier := &jmap.Verifier{SessionURL: sc.SessionURL()}
	authHandler, err := auth.NewHandler(&auth.Config{
		Resource:             config.BaseURL,
		AuthorizationServers: config.AuthorizationServers,
		ScopesSupported: []string{
			jmap.CapabilityCore,
			jmap.CapabilityMail,
			jmap.CapabilitySubmission,
			jmap.CapabilityContacts,
			jmap.CapabilityCalendars,
		},
		Logger:  sc.Logger(),
		Metrics: sc.Metrics(),
	}, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth handler: %w", err)
	}

	// The middleware saves each validated provider token in the auth store.
	// Make that store the token source unless the caller configured one, so
	// tool handlers can reach the provider as the authenticated user.
	sc.mu.Lock()
	if sc.tokens == nil {
		sc.tokens = auth.NewStoreTokenProvider(authHandler.Store())
	}
	sc.mu.Unlock()

	gw := gateway.New(sc.PolicyEngine(),
		gateway.WithLogger(sc.Logger()),
		gateway.WithDenialObserver(func(identity, operation, reason string) {
			if audit := sc.AuditLogger(); audit != nil {
				audit.LogPermissionDenial(identity, operation, reason)
			}
			if metrics := sc.Metrics(); metrics != nil {
				user := sc.PolicyEngine().UserConfig(sc.Context(), identity)
				metrics.RecordPolicyDecision(sc.Context(), operation, string(user.Role), false)
			}
		}),
	)

	return &HTTPServer{
		mcpServer:   mcpServer,
		sc:          sc,
		authHandler: authHandler,
		gw:          gw,
		health:      NewHealthChecker(sc),
		config:      config,
	}, nil
}

// AuthHandler returns the OAuth resource-server handler for testing or
// direct access.
func (s *HTTPServer) AuthHandler() *auth.Handler {
	return s.authHandler
}

// Health returns the health checker so callers can flip readiness.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Handler builds the full HTTP handler without binding a listener.
// Exposed so tests can drive the server through httptest.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Protected Resource Metadata endpoint (RFC 9728). This tells MCP
	// clients where to find the authorization server.
	mux.HandleFunc("/.well-known/oauth-protected-resource", s.authHandler.ServeProtectedResourceMetadata)

	s.health.RegisterHealthEndpoints(mux)

	// Signed one-shot action links from the digest page. Deliberately
	// outside the OAuth middleware; the signature is the authorization.
	if len(s.config.ActionKey) > 0 {
		mux.Handle("/action", s.actionHandler())
	}

	var streamable http.Handler
	if s.config.DisableStreaming {
		streamable = mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithDisableStreaming(true),
		)
	} else {
		streamable = mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
		)
	}

	// Bearer validation first, then the permission gateway; the gateway
	// needs the identity the auth middleware puts on the context.
	mux.Handle("/mcp", s.authHandler.ValidateToken(s.gw.Middleware(streamable)))

	return s.instrumentationMiddleware(mux)
}

// responseWriter captures the status code for HTTP metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush preserves streaming support through the metrics wrapper.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// instrumentationMiddleware records request counts and latency per method,
// path and status.
func (s *HTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var metrics *instrumentation.Metrics
		if s.sc != nil {
			metrics = s.sc.Metrics()
		}
		if metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *HTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.sc.Logger().Info("starting HTTP server",
		"addr", addr, "base_url", s.config.BaseURL)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance.
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1)
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
