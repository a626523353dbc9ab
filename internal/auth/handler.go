package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/petrel-mail/petrel/internal/instrumentation"
)

// Config holds the resource server configuration.
type Config struct {
	// Resource is the MCP server resource identifier for RFC 8707.
	// This should be the base URL of the MCP server.
	Resource string

	// AuthorizationServers lists the authorization server(s) that issue
	// tokens for this resource. For petrel this is the mail provider's
	// OAuth issuer.
	AuthorizationServers []string

	// ScopesSupported lists the scopes understood by this resource.
	ScopesSupported []string

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Metrics records authentication outcomes (optional).
	Metrics *instrumentation.Metrics
}

// ErrorResponse is an OAuth 2.0 error body (RFC 6749 section 5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 metadata document served at
// /.well-known/oauth-protected-resource.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// SessionVerifier validates a bearer token against the mail provider and
// returns the primary email address of the account it belongs to. The JMAP
// session endpoint serves this purpose: it rejects invalid tokens and its
// response names the account.
type SessionVerifier interface {
	VerifyToken(ctx context.Context, accessToken string) (string, error)
}

// Handler implements the OAuth 2.1 resource server side of the MCP
// endpoint: it validates bearer tokens and serves the protected resource
// metadata that points clients at the provider's authorization server.
type Handler struct {
	config   *Config
	store    *Store
	verifier SessionVerifier
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// NewHandler creates a new resource server handler.
func NewHandler(config *Config, verifier SessionVerifier) (*Handler, error) {
	if config.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}

	parsedURL, err := url.Parse(config.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}

	// Allow HTTP only for localhost/loopback addresses (development).
	// Require HTTPS for all other addresses (production).
	if parsedURL.Scheme != "https" {
		hostname := parsedURL.Hostname()
		if hostname != "localhost" &&
			hostname != "127.0.0.1" &&
			hostname != "::1" &&
			hostname != "[::1]" {
			return nil, fmt.Errorf("resource must use HTTPS in production (got %s://)", parsedURL.Scheme)
		}
	}

	if len(config.AuthorizationServers) == 0 {
		return nil, fmt.Errorf("at least one authorization server is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("session verifier is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := NewStore()
	store.SetLogger(logger)

	return &Handler{
		config:   config,
		store:    store,
		verifier: verifier,
		logger:   logger,
		metrics:  config.Metrics,
	}, nil
}

// recordAuth feeds the oauth_auth_total counter. Cache hits count as
// successes; every rejected request counts as a failure.
func (h *Handler) recordAuth(ctx context.Context, result string) {
	if h.metrics != nil {
		h.metrics.RecordOAuthAuth(ctx, result)
	}
}

// Store returns the token store for resource server functionality.
func (h *Handler) Store() *Store {
	return h.store
}

// ServeProtectedResourceMetadata serves the OAuth 2.0 Protected Resource
// Metadata (RFC 9728). MCP clients fetch this after a 401 to discover the
// provider's authorization server and run its OAuth flow directly.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:             h.config.Resource,
		AuthorizationServers: h.config.AuthorizationServers,
		BearerMethodsSupported: []string{
			"header", // Authorization: Bearer <token>
		},
		ScopesSupported: h.config.ScopesSupported,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode metadata", "error", err)
	}
}

// setSecurityHeaders sets security headers on HTTP responses.
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if parsedURL, err := url.Parse(h.config.Resource); err == nil && parsedURL.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// writeUnauthorizedError writes an OAuth error response with 401 status.
func (h *Handler) writeUnauthorizedError(w http.ResponseWriter, errorCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
