package common

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/server"
)

// ClientForRequest resolves the JMAP client for the calling account. When no
// client can be created (no token, or session discovery failed) it returns a
// user-facing error result instead of a Go error, per the handler convention.
func ClientForRequest(ctx context.Context, args map[string]interface{}, sc *server.ServerContext) (*jmap.Client, *mcp.CallToolResult) {
	account := GetAccountFromArgs(ctx, args)
	client := sc.ClientForAccount(account)
	if client == nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf(
			"No mail credentials available for account %q. Authenticate through your MCP client and retry.", account))
	}
	return client, nil
}
