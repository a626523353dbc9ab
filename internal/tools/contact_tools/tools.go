package contact_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/instrumentation"
	"github.com/petrel-mail/petrel/internal/server"
	"github.com/petrel-mail/petrel/internal/tools/common"
)

const defaultContactLimit = 50

// RegisterContactTools registers all contact-related tools with the MCP server
func RegisterContactTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool("list_contacts",
		mcp.WithDescription("List contacts from the address book"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of contacts to return (default: 50)"),
		),
		mcp.WithNumber("position",
			mcp.Description("Offset into the result list for paging (default: 0)"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandlerWithService(
		"list_contacts", instrumentation.ServiceContacts, "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListContacts(ctx, request, sc)
		}))

	getTool := mcp.NewTool("get_contact",
		mcp.WithDescription("Get one contact by ID"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("contactId",
			mcp.Required(),
			mcp.Description("The ID of the contact to fetch"),
		),
	)
	s.AddTool(getTool, common.InstrumentedToolHandlerWithService(
		"get_contact", instrumentation.ServiceContacts, "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetContact(ctx, request, sc)
		}))

	searchTool := mcp.NewTool("search_contacts",
		mcp.WithDescription("Search contacts by name, email, or organization"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text search across contact fields"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of contacts to return (default: 50)"),
		),
	)
	s.AddTool(searchTool, common.InstrumentedToolHandlerWithService(
		"search_contacts", instrumentation.ServiceContacts, "query", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchContacts(ctx, request, sc)
		}))

	return nil
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if value, ok := args[key].(float64); ok {
		return int(value)
	}
	return fallback
}

func handleListContacts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	contacts, err := client.ListContacts(ctx, intArg(args, "position", 0), intArg(args, "limit", defaultContactLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list contacts: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "list_contacts", contacts)
}

func handleGetContact(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	contactID, _ := args["contactId"].(string)
	if contactID == "" {
		return mcp.NewToolResultError("contactId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	contact, err := client.GetContact(ctx, contactID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get contact: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "get_contact", contact)
}

func handleSearchContacts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	contacts, err := client.SearchContacts(ctx, query, intArg(args, "limit", defaultContactLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search contacts: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "search_contacts", contacts)
}
