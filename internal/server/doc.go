// Package server provides the MCP server context and the OAuth-gated HTTP
// transport for petrel.
//
// # Key Components
//
// ServerContext manages JMAP clients with lazy initialization and caching.
// It supports multiple accounts keyed by the authenticated identity, and it
// owns the collaborators the tool layer shares: the durable KV store, the
// policy engine, the datamarking session, and the instrumentation hooks.
//
// HTTPServer wraps an MCP server with OAuth 2.1 bearer authentication:
//   - Protected Resource Metadata (RFC 9728) pointing clients at the mail
//     provider as the authorization server
//   - Bearer validation against the JMAP session endpoint
//   - The permission gateway filtering tool calls and tool listings per
//     caller role and category configuration
//   - Health endpoints for Kubernetes probes
//   - The /action endpoint consuming one-shot signed digest links
//
// # Security Posture
//
// HTTPS is required for production (localhost exempt for development).
// Permission denials are returned in-band as JSON-RPC errors; the gateway
// fails closed on request bodies it cannot parse. Action links are single
// use and spend their nonce before the mail operation runs.
package server
