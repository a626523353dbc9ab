package mail_tools

import (
	"fmt"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/server"
)

// RegisterMailTools registers all mail-related tools with the MCP server
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterReadTools(s, sc); err != nil {
		return fmt.Errorf("failed to register mail read tools: %w", err)
	}

	if readOnly {
		return nil
	}

	if err := RegisterManageTools(s, sc); err != nil {
		return fmt.Errorf("failed to register inbox management tools: %w", err)
	}

	if err := RegisterComposeTools(s, sc); err != nil {
		return fmt.Errorf("failed to register compose tools: %w", err)
	}

	return nil
}

// stringArg returns a string argument, empty when absent or mistyped.
func stringArg(args map[string]interface{}, key string) string {
	value, _ := args[key].(string)
	return value
}

// intArg returns a numeric argument. JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string, fallback int) int {
	if value, ok := args[key].(float64); ok {
		return int(value)
	}
	return fallback
}

func boolArg(args map[string]interface{}, key string, fallback bool) bool {
	if value, ok := args[key].(bool); ok {
		return value
	}
	return fallback
}

// addressListArg parses an address argument that may be a single string
// (optionally comma-separated) or an array of strings.
func addressListArg(args map[string]interface{}, key string) ([]jmap.EmailAddress, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var inputs []string
	switch value := raw.(type) {
	case string:
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				inputs = append(inputs, trimmed)
			}
		}
	case []interface{}:
		for _, entry := range value {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				inputs = append(inputs, strings.TrimSpace(s))
			}
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", key)
	}

	addresses, err := jmap.ParseAddressList(inputs)
	if err != nil {
		return nil, fmt.Errorf("invalid %s address: %w", key, err)
	}
	return addresses, nil
}
