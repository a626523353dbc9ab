package storage

import (
	"context"
	"time"
)

// Store is a minimal durable key-value contract. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes a value. A zero ttl means the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key and reports whether it existed. The existence
	// report must be atomic with the removal: two concurrent deletes of the
	// same key see true at most once. Single-use nonce consumption depends
	// on this.
	Delete(ctx context.Context, key string) (bool, error)

	// Close releases any backend resources.
	Close() error
}
