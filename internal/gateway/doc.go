// Package gateway enforces permission policy at the transport boundary.
//
// Inbound JSON-RPC bodies are inspected before they reach the MCP server:
// every tools/call message is checked against the policy engine, and the
// first denial in a batch short-circuits the whole request with an in-band
// JSON-RPC error. Outbound tools/list responses are pruned to the caller's
// visible operation set so a restricted caller never learns about
// operations it cannot invoke.
//
// An unparseable body is denied rather than forwarded: this layer must
// never be the one place a request can slip past policy by being malformed.
package gateway
