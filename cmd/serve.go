package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/auth"
	"github.com/petrel-mail/petrel/internal/instrumentation"
	"github.com/petrel-mail/petrel/internal/policy"
	"github.com/petrel-mail/petrel/internal/server"
	"github.com/petrel-mail/petrel/internal/storage"
	"github.com/petrel-mail/petrel/internal/tools/calendar_tools"
	"github.com/petrel-mail/petrel/internal/tools/contact_tools"
	"github.com/petrel-mail/petrel/internal/tools/mail_tools"
	"github.com/petrel-mail/petrel/internal/tools/meta_tools"
)

// StorageConfig holds the shared storage backend configuration
type StorageConfig struct {
	// Type is the storage backend type: "memory" or "valkey" (default: "memory")
	Type string

	// Valkey configuration (used when Type is "valkey")
	Valkey ValkeyStorageConfig
}

// ValkeyStorageConfig holds configuration for the Valkey storage backend
type ValkeyStorageConfig struct {
	// URL is the Valkey server address (e.g., "valkey.namespace.svc:6379")
	URL string

	// Password is the optional password for Valkey authentication
	Password string

	// TLSEnabled enables TLS for Valkey connections
	TLSEnabled bool

	// TLSCAFile is the path to a custom CA certificate file for TLS verification.
	// Use this when Valkey uses certificates signed by a private CA.
	TLSCAFile string

	// KeyPrefix is the prefix for all Valkey keys (default: "petrel:")
	KeyPrefix string

	// DB is the Valkey database number (default: 0)
	DB int
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// ActionConfig holds configuration for signed one-shot action links
type ActionConfig struct {
	// Key signs action URLs. Empty disables the /action endpoint.
	Key []byte

	// Account is the mailbox identity the action links operate on.
	Account string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode        bool
		transport        string
		httpAddr         string
		yolo             bool
		disableStreaming bool
		baseURL          string
		sessionURL       string
		authServers      []string
		permissionsFile  string
		// Action URL settings
		actionKey     string
		actionAccount string
		// Storage options
		storageType     string
		valkeyURL       string
		valkeyPassword  string
		valkeyTLS       bool
		valkeyTLSCAFile string
		valkeyKeyPrefix string
		valkeyDB        int
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing JMAP mail,
contacts and calendar tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with OAuth bearer validation

Safety Mode:
  By default, the server operates in read-only mode, providing only safe operations.
  Use --yolo to enable write operations (sending mail, deleting events, etc.)

Provider Configuration:
  JMAP session URL (required):
    --session-url https://jmap.example.com/.well-known/jmap
    OR JMAP_SESSION_URL env var

  STDIO Transport:
    JMAP_ACCESS_TOKEN env var supplies the provider token.

  HTTP Transport:
    Clients present OAuth bearer tokens which are validated against the
    provider's session endpoint; no server-side token is needed.
    Base URL (required for deployed instances):
      --base-url https://your-domain.com OR MCP_BASE_URL env var
      Auto-detected for localhost (development only)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionURL == "" {
				sessionURL = os.Getenv("JMAP_SESSION_URL")
			}
			if sessionURL == "" {
				return fmt.Errorf("JMAP session URL is required (use --session-url or JMAP_SESSION_URL)")
			}

			// Parse action key from base64 if provided
			var actionKeyBytes []byte
			if actionKey == "" {
				actionKey = os.Getenv("ACTION_URL_KEY")
			}
			if actionKey != "" {
				decoded, err := base64.StdEncoding.DecodeString(actionKey)
				if err != nil {
					return fmt.Errorf("invalid action key (must be base64 encoded): %w", err)
				}
				if len(decoded) < 32 {
					return fmt.Errorf("action key must be at least 32 bytes (got %d bytes)", len(decoded))
				}
				actionKeyBytes = decoded
			}
			if actionAccount == "" {
				actionAccount = os.Getenv("ACTION_ACCOUNT")
			}

			// Build storage config from flags/env
			storageConfig := StorageConfig{
				Type: storageType,
				Valkey: ValkeyStorageConfig{
					URL:        valkeyURL,
					Password:   valkeyPassword,
					TLSEnabled: valkeyTLS,
					TLSCAFile:  valkeyTLSCAFile,
					KeyPrefix:  valkeyKeyPrefix,
					DB:         valkeyDB,
				},
			}

			// Load storage config from environment variables if not set via flags
			loadStorageEnvVars(cmd, &storageConfig)

			// Build metrics config
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}

			actionConfig := ActionConfig{
				Key:     actionKeyBytes,
				Account: actionAccount,
			}

			return runServe(serveOptions{
				transport:        transport,
				debugMode:        debugMode,
				httpAddr:         httpAddr,
				yolo:             yolo,
				disableStreaming: disableStreaming,
				baseURL:          baseURL,
				sessionURL:       sessionURL,
				authServers:      authServers,
				permissionsFile:  permissionsFile,
				action:           actionConfig,
				storage:          storageConfig,
				metrics:          metricsConfig,
			})
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (sending mail, deleting events, etc.). Default is read-only mode.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL of this instance (HTTP transport only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")
	cmd.Flags().StringVar(&sessionURL, "session-url", "", "JMAP session resource URL of the mail provider. Can also use JMAP_SESSION_URL env var.")
	cmd.Flags().StringSliceVar(&authServers, "auth-server", nil, "OAuth authorization server URLs advertised to MCP clients (HTTP transport only). Defaults to the JMAP provider's origin.")
	cmd.Flags().StringVar(&permissionsFile, "permissions-file", "", "Path to a JSON permissions config loaded into the store at startup. Can also use PERMISSIONS_FILE env var.")

	// Action URL flags
	cmd.Flags().StringVar(&actionKey, "action-key", "", "HMAC key for signed one-shot action links (base64 encoded, at least 32 bytes). Can also use ACTION_URL_KEY env var. Generate with: openssl rand -base64 32")
	cmd.Flags().StringVar(&actionAccount, "action-account", "", "Account identity whose mailbox action links operate on. Can also use ACTION_ACCOUNT env var.")

	// Storage flags
	cmd.Flags().StringVar(&storageType, "storage-type", "memory", "Storage backend type: memory or valkey. Can also use STORAGE_TYPE env var.")
	cmd.Flags().StringVar(&valkeyURL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&valkeyPassword, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().BoolVar(&valkeyTLS, "valkey-tls", false, "Enable TLS for Valkey connections. Can also use VALKEY_TLS_ENABLED env var.")
	cmd.Flags().StringVar(&valkeyTLSCAFile, "valkey-tls-ca-file", "", "Path to a custom CA certificate for Valkey TLS. Can also use VALKEY_TLS_CA_FILE env var.")
	cmd.Flags().StringVar(&valkeyKeyPrefix, "valkey-key-prefix", "petrel:", "Prefix for all Valkey keys. Can also use VALKEY_KEY_PREFIX env var.")
	cmd.Flags().IntVar(&valkeyDB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

type serveOptions struct {
	transport        string
	debugMode        bool
	httpAddr         string
	yolo             bool
	disableStreaming bool
	baseURL          string
	sessionURL       string
	authServers      []string
	permissionsFile  string
	action           ActionConfig
	storage          StorageConfig
	metrics          MetricsConfig
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load metrics config from environment if not set via flags
	if !opts.metrics.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			opts.metrics.Enabled = true
		}
	}
	if opts.metrics.Addr == "" || opts.metrics.Addr == ":9090" {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			opts.metrics.Addr = addr
		}
	}

	// The MCP protocol owns stdout in stdio mode, so logs go to stderr.
	logLevel := slog.LevelInfo
	if opts.debugMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if opts.transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if opts.transport != "stdio" && opts.metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Build the shared store for permissions config and action nonces
	store, err := buildStore(opts.storage)
	if err != nil {
		return err
	}

	// Seed the permissions config from a file if one was given
	if opts.permissionsFile == "" {
		opts.permissionsFile = os.Getenv("PERMISSIONS_FILE")
	}
	if opts.permissionsFile != "" {
		if err := loadPermissionsFile(shutdownCtx, store, opts.permissionsFile); err != nil {
			return err
		}
	}

	// In stdio mode the provider token comes from the environment; over
	// HTTP the bearer-validation middleware supplies tokens per caller.
	var tokens auth.TokenProvider
	if opts.transport == "stdio" {
		if accessToken := os.Getenv("JMAP_ACCESS_TOKEN"); accessToken != "" {
			tokenStore := memory.New()
			defer tokenStore.Stop()
			libraryTokens := auth.NewLibraryTokenProvider(tokenStore)
			if err := libraryTokens.SaveToken(shutdownCtx, "default", &oauth2.Token{AccessToken: accessToken}); err != nil {
				return fmt.Errorf("failed to store access token: %w", err)
			}
			tokens = libraryTokens
		} else {
			log.Printf("Warning: JMAP_ACCESS_TOKEN not set, tools will fail until a token is available")
		}
	}

	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		SessionURL: opts.sessionURL,
		Tokens:     tokens,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		auditConfig := instrConfig.AuditLogging
		auditConfig.IncludePII = auditConfig.IncludePII || os.Getenv("AUDIT_LOGGING_INCLUDE_PII") == "true"
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, auditConfig))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if opts.transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("petrel", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !opts.yolo

	// Log the mode for visibility (only for non-stdio transports)
	if opts.transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	// Register all tools
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch opts.transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, opts)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}
}

// buildStore constructs the configured storage backend.
func buildStore(config StorageConfig) (storage.Store, error) {
	switch config.Type {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "valkey":
		store, err := storage.NewValkeyStore(storage.ValkeyConfig{
			URL:        config.Valkey.URL,
			Password:   config.Valkey.Password,
			TLSEnabled: config.Valkey.TLSEnabled,
			TLSCAFile:  config.Valkey.TLSCAFile,
			KeyPrefix:  config.Valkey.KeyPrefix,
			DB:         config.Valkey.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (supported: memory, valkey)", config.Type)
	}
}

// loadPermissionsFile validates a permissions config file and writes it to
// the store where the policy engine reads it.
func loadPermissionsFile(ctx context.Context, store storage.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read permissions file: %w", err)
	}
	if _, err := policy.ParsePermissionsConfig(raw); err != nil {
		return fmt.Errorf("invalid permissions file %s: %w", path, err)
	}
	if err := store.Set(ctx, policy.ConfigKey, raw, 0); err != nil {
		return fmt.Errorf("failed to store permissions config: %w", err)
	}
	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Mail",
			register: func() error {
				return mail_tools.RegisterMailTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Contacts",
			register: func() error {
				return contact_tools.RegisterContactTools(mcpSrv, ctx)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Meta",
			register: func() error {
				return meta_tools.RegisterMetaTools(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, opts serveOptions) error {
	// Determine base URL from flag, environment variable, or auto-detection
	baseURL := opts.baseURL
	if baseURL == "" {
		baseURL = os.Getenv("MCP_BASE_URL")
	}
	if baseURL == "" {
		// Fall back to auto-detection for local development
		baseURL = fmt.Sprintf("http://%s", opts.httpAddr)
		if opts.httpAddr[0] == ':' {
			baseURL = fmt.Sprintf("http://localhost%s", opts.httpAddr)
		}
		log.Printf("No base URL configured, using auto-detected: %s", baseURL)
		log.Printf("For deployed instances, set --base-url flag or MCP_BASE_URL env var")
	} else {
		log.Printf("Using configured base URL: %s", baseURL)
	}

	// Default the advertised authorization server to the JMAP provider's
	// origin. A provider issuing its own tokens is the common case.
	authServers := opts.authServers
	if len(authServers) == 0 {
		if fromEnv := os.Getenv("MCP_AUTH_SERVERS"); fromEnv != "" {
			authServers = parseCommaSeparatedList(fromEnv)
		}
	}
	if len(authServers) == 0 {
		origin, err := providerOrigin(opts.sessionURL)
		if err != nil {
			return fmt.Errorf("cannot derive authorization server from session URL: %w", err)
		}
		authServers = []string{origin}
		log.Printf("No authorization server configured, advertising provider origin: %s", origin)
	}

	httpServer, err := server.NewHTTPServer(mcpSrv, serverContext, server.HTTPConfig{
		BaseURL:              baseURL,
		AuthorizationServers: authServers,
		ActionKey:            opts.action.Key,
		ActionAccount:        opts.action.Account,
		DisableStreaming:     opts.disableStreaming,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	fmt.Printf("Streamable HTTP server with OAuth bearer authentication starting on %s\n", opts.httpAddr)
	fmt.Printf("  HTTP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	fmt.Printf("  OAuth metadata: /.well-known/oauth-protected-resource\n")
	if len(opts.action.Key) > 0 {
		fmt.Printf("  Action endpoint: /action\n")
	}
	if opts.metrics.Enabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", opts.metrics.Addr)
	}
	fmt.Println("\nClients must present a provider bearer token to access this server.")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(opts.httpAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}

// providerOrigin reduces a JMAP session URL to its scheme and host.
func providerOrigin(sessionURL string) (string, error) {
	u, err := url.Parse(sessionURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("session URL %q has no scheme or host", sessionURL)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// loadStorageEnvVars loads storage configuration from environment variables.
// Environment variables only override flag values when the flag was not
// explicitly set. The cmd parameter is used to check if flags were set.
func loadStorageEnvVars(cmd *cobra.Command, config *StorageConfig) {
	if !cmd.Flags().Changed("storage-type") {
		if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
			config.Type = storageType
		}
	}

	if !cmd.Flags().Changed("valkey-url") {
		if url := os.Getenv("VALKEY_URL"); url != "" && config.Valkey.URL == "" {
			config.Valkey.URL = url
		}
	}

	if !cmd.Flags().Changed("valkey-password") {
		if password := os.Getenv("VALKEY_PASSWORD"); password != "" && config.Valkey.Password == "" {
			config.Valkey.Password = password
		}
	}

	if !cmd.Flags().Changed("valkey-key-prefix") {
		if keyPrefix := os.Getenv("VALKEY_KEY_PREFIX"); keyPrefix != "" {
			config.Valkey.KeyPrefix = keyPrefix
		}
	}

	if !cmd.Flags().Changed("valkey-tls") {
		if os.Getenv("VALKEY_TLS_ENABLED") == "true" {
			config.Valkey.TLSEnabled = true
		}
	}

	if config.Valkey.TLSCAFile == "" {
		if caFile := os.Getenv("VALKEY_TLS_CA_FILE"); caFile != "" {
			config.Valkey.TLSCAFile = caFile
		}
	}

	if !cmd.Flags().Changed("valkey-db") {
		if dbStr := os.Getenv("VALKEY_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				config.Valkey.DB = db
			}
		}
	}
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
