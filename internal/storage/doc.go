// Package storage provides the durable key-value store used for the
// permissions configuration and for single-use action-URL nonces.
//
// Two backends are available: an in-memory store for stdio transport,
// development, and tests, and a Valkey-backed store for deployed instances
// where permissions and nonces must survive restarts and be shared across
// replicas. Both honor per-key TTLs; the memory backend expires keys lazily
// on read.
package storage
