// Package logging provides slog attribute helpers used across the
// codebase, keeping attribute names consistent and caller identities
// hashed so logs correlate without exposing PII.
package logging
