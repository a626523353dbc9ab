package meta_tools

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/auth"
	"github.com/petrel-mail/petrel/internal/policy"
	"github.com/petrel-mail/petrel/internal/server"
	"github.com/petrel-mail/petrel/internal/tools/common"
)

// RegisterMetaTools registers tools describing the session itself rather
// than mailbox data.
func RegisterMetaTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	sessionInfoTool := mcp.NewTool("get_session_info",
		mcp.WithDescription("Describe the authenticated session: identity, role, the operations this session may call, and how external content is delimited in tool results"),
	)
	s.AddTool(sessionInfoTool, common.InstrumentedToolHandler(
		"get_session_info", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSessionInfo(ctx, request, sc)
		}))

	return nil
}

func handleSessionInfo(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	identity, _ := auth.IdentityFromContext(ctx)

	user := sc.PolicyEngine().UserConfig(ctx, identity)

	operations := make([]string, 0)
	for operation := range policy.VisibleOperations(user) {
		operations = append(operations, operation)
	}
	sort.Strings(operations)

	info := map[string]any{
		"identity":          identity,
		"role":              string(user.Role),
		"allowedOperations": operations,
		"externalContent":   sc.Marks().Preamble(),
	}

	return common.JSONResult(info)
}
