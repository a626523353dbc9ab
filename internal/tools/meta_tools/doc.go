// Package meta_tools provides MCP tools about the session itself, such as
// get_session_info for discovering the caller's identity, role and allowed
// operations.
package meta_tools
