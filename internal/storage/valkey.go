package storage

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig holds connection settings for the Valkey backend.
type ValkeyConfig struct {
	// URL is the server address, e.g. "valkey.namespace.svc:6379".
	URL string

	// Password is the optional authentication password.
	Password string

	// TLSEnabled enables TLS for the connection.
	TLSEnabled bool

	// TLSCAFile is an optional custom CA certificate file, for servers
	// using certificates signed by a private CA.
	TLSCAFile string

	// KeyPrefix is prepended to every key (default "petrel:").
	KeyPrefix string

	// DB is the database number.
	DB int
}

// ValkeyStore is a Store backed by a Valkey server.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore connects to Valkey with the given configuration.
func NewValkeyStore(config ValkeyConfig) (*ValkeyStore, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("valkey URL is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "petrel:"
	}

	option := valkey.ClientOption{
		InitAddress: []string{config.URL},
		Password:    config.Password,
		SelectDB:    config.DB,
	}

	if config.TLSEnabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if config.TLSCAFile != "" {
			caPEM, err := os.ReadFile(config.TLSCAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA file %s: %w", config.TLSCAFile, err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no certificates found in CA file %s", config.TLSCAFile)
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	return &ValkeyStore{client: client, prefix: config.KeyPrefix}, nil
}

// Get returns the value for key.
func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.prefix+key).Build())
	value, err := resp.AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey get %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes a value with an optional TTL.
func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = s.client.B().Set().Key(s.prefix + key).Value(valkey.BinaryString(value)).Ex(ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(s.prefix + key).Value(valkey.BinaryString(value)).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. DEL's removed-count makes the existence report
// atomic server-side, which single-use nonce consumption relies on.
func (s *ValkeyStore) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := s.client.Do(ctx, s.client.B().Del().Key(s.prefix+key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey del %s: %w", key, err)
	}
	return removed > 0, nil
}

// Close shuts down the client connection.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
