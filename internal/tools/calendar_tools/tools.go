package calendar_tools

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/server"
)

// RegisterCalendarTools registers all calendar-related tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterCalendarReadTools(s, sc); err != nil {
		return fmt.Errorf("failed to register calendar read tools: %w", err)
	}

	if readOnly {
		return nil
	}

	if err := RegisterCalendarWriteTools(s, sc); err != nil {
		return fmt.Errorf("failed to register calendar write tools: %w", err)
	}

	return nil
}

func stringArg(args map[string]interface{}, key string) string {
	value, _ := args[key].(string)
	return value
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if value, ok := args[key].(float64); ok {
		return int(value)
	}
	return fallback
}
