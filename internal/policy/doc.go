// Package policy decides, per caller and operation, whether a tool call is
// allowed. Two orthogonal axes drive the decision: per-caller disabled
// categories (a tenant-level feature gate, checked first and binding even
// for admins) and the caller's role (admin or delegate). Decisions are
// returned as values, never errors, so a forgotten error check cannot turn
// a denial into an allow.
//
// The permissions configuration lives in the durable store under a
// well-known key and is cached process-wide for a bounded TTL. The
// staleness window trades lookup cost against consistency: a caller can
// hold revoked access for at most the TTL plus one in-flight request.
package policy
