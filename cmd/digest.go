package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrel-mail/petrel/internal/actionurl"
	"github.com/petrel-mail/petrel/internal/digest"
	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/storage"
)

func newDigestCmd() *cobra.Command {
	var (
		output     string
		limit      int
		sessionURL string
		baseURL    string
		actionKey  string
		// Storage options, shared with the serve command
		storageType     string
		valkeyURL       string
		valkeyPassword  string
		valkeyTLS       bool
		valkeyTLSCAFile string
		valkeyKeyPrefix string
		valkeyDB        int
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Generate an HTML inbox digest",
		Long: `Generate a static HTML digest of the inbox, suitable for serving as a
glanceable triage page.

When --action-key and --base-url are set, each message gets one-shot signed
archive and delete links pointing at a running petrel instance's /action
endpoint. Issuing a link records its single-use nonce in storage, so the
digest command must share the instance's storage backend (--storage-type
valkey) for the links to work.

Requires JMAP_SESSION_URL (or --session-url) and JMAP_ACCESS_TOKEN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionURL == "" {
				sessionURL = os.Getenv("JMAP_SESSION_URL")
			}
			if sessionURL == "" {
				return fmt.Errorf("JMAP session URL is required (use --session-url or JMAP_SESSION_URL)")
			}

			accessToken := os.Getenv("JMAP_ACCESS_TOKEN")
			if accessToken == "" {
				return fmt.Errorf("JMAP_ACCESS_TOKEN is required")
			}

			if actionKey == "" {
				actionKey = os.Getenv("ACTION_URL_KEY")
			}
			if baseURL == "" {
				baseURL = os.Getenv("MCP_BASE_URL")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			client, err := jmap.NewClient(ctx, sessionURL, accessToken)
			if err != nil {
				return fmt.Errorf("failed to connect to JMAP provider: %w", err)
			}

			var issuer *actionurl.Issuer
			if actionKey != "" && baseURL != "" {
				key, err := base64.StdEncoding.DecodeString(actionKey)
				if err != nil {
					return fmt.Errorf("invalid action key (must be base64 encoded): %w", err)
				}
				if len(key) < 32 {
					return fmt.Errorf("action key must be at least 32 bytes (got %d bytes)", len(key))
				}

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
				loadStorageEnvVars(cmd, &storageConfig)

				store, err := buildStore(storageConfig)
				if err != nil {
					return err
				}
				defer store.Close()
				if _, ok := store.(*storage.MemoryStore); ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "Warning: using in-memory nonce storage; action links will be rejected by a server using a different store")
				}

				issuer = actionurl.NewIssuer(key, store, baseURL)
			}

			gen := digest.NewGenerator(client, issuer, digest.WithLimit(limit))
			page, err := gen.Generate(ctx)
			if err != nil {
				return fmt.Errorf("failed to generate digest: %w", err)
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(page)
				return err
			}
			if err := os.WriteFile(output, page, 0o644); err != nil {
				return fmt.Errorf("failed to write digest: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Digest written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().IntVar(&limit, "limit", digest.DefaultLimit, "Maximum number of messages to include")
	cmd.Flags().StringVar(&sessionURL, "session-url", "", "JMAP session resource URL of the mail provider. Can also use JMAP_SESSION_URL env var.")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL of a running petrel instance, used for action links. Can also use MCP_BASE_URL env var.")
	cmd.Flags().StringVar(&actionKey, "action-key", "", "HMAC key for signed action links (base64 encoded). Can also use ACTION_URL_KEY env var.")

	// Storage flags, matching the serve command so both sides of an action
	// link share the same nonce store
	cmd.Flags().StringVar(&storageType, "storage-type", "memory", "Storage backend type: memory or valkey. Can also use STORAGE_TYPE env var.")
	cmd.Flags().StringVar(&valkeyURL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&valkeyPassword, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().BoolVar(&valkeyTLS, "valkey-tls", false, "Enable TLS for Valkey connections. Can also use VALKEY_TLS_ENABLED env var.")
	cmd.Flags().StringVar(&valkeyTLSCAFile, "valkey-tls-ca-file", "", "Path to a custom CA certificate for Valkey TLS. Can also use VALKEY_TLS_CA_FILE env var.")
	cmd.Flags().StringVar(&valkeyKeyPrefix, "valkey-key-prefix", "petrel:", "Prefix for all Valkey keys. Can also use VALKEY_KEY_PREFIX env var.")
	cmd.Flags().IntVar(&valkeyDB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")

	return cmd
}
