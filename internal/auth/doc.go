// Package auth implements the OAuth resource-server side of the gateway:
// validating bearer tokens on incoming MCP requests, establishing the
// caller's email identity in the request context, and serving the RFC 9728
// protected-resource metadata that points MCP clients at the mail
// provider's authorization server.
//
// Token issuance itself (authorization code + PKCE) happens at the mail
// provider; this package only validates presented tokens against the
// provider's JMAP session endpoint and caches the result. The permission
// gateway consumes the identity this package establishes.
package auth
