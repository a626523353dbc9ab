package mail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/instrumentation"
	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/server"
	"github.com/petrel-mail/petrel/internal/tools/common"
)

const defaultListLimit = 20

// RegisterReadTools registers the read-only mail tools
func RegisterReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listMailboxesTool := mcp.NewTool("list_mailboxes",
		mcp.WithDescription("List all mailboxes (folders) with message and unread counts"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
	)
	s.AddTool(listMailboxesTool, common.InstrumentedToolHandlerWithService(
		"list_mailboxes", instrumentation.ServiceMail, "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListMailboxes(ctx, request, sc)
		}))

	listEmailsTool := mcp.NewTool("list_emails",
		mcp.WithDescription("List recent emails, newest first, optionally from one mailbox"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("mailboxId",
			mcp.Description("Restrict the listing to this mailbox ID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of emails to return (default: 20)"),
		),
		mcp.WithNumber("position",
			mcp.Description("Offset into the result list for paging (default: 0)"),
		),
	)
	s.AddTool(listEmailsTool, common.InstrumentedToolHandlerWithService(
		"list_emails", instrumentation.ServiceMail, "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEmails(ctx, request, sc)
		}))

	getEmailTool := mcp.NewTool("get_email",
		mcp.WithDescription("Get one email including its body text"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to fetch"),
		),
	)
	s.AddTool(getEmailTool, common.InstrumentedToolHandlerWithService(
		"get_email", instrumentation.ServiceMail, "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmail(ctx, request, sc)
		}))

	getThreadTool := mcp.NewTool("get_email_thread",
		mcp.WithDescription("Get every email in a conversation thread, oldest first"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("threadId",
			mcp.Required(),
			mcp.Description("The ID of the thread to fetch"),
		),
	)
	s.AddTool(getThreadTool, common.InstrumentedToolHandlerWithService(
		"get_email_thread", instrumentation.ServiceMail, "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetThread(ctx, request, sc)
		}))

	searchEmailsTool := mcp.NewTool("search_emails",
		mcp.WithDescription("Search emails by text, sender, recipient, subject, or date range"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text search across message content"),
		),
		mcp.WithString("from",
			mcp.Description("Match messages from this address"),
		),
		mcp.WithString("to",
			mcp.Description("Match messages to this address"),
		),
		mcp.WithString("subject",
			mcp.Description("Match messages whose subject contains this text"),
		),
		mcp.WithString("mailboxId",
			mcp.Description("Restrict the search to this mailbox ID"),
		),
		mcp.WithString("before",
			mcp.Description("Only messages received before this RFC 3339 timestamp"),
		),
		mcp.WithString("after",
			mcp.Description("Only messages received after this RFC 3339 timestamp"),
		),
		mcp.WithBoolean("hasAttachment",
			mcp.Description("Only messages with attachments"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of emails to return (default: 20)"),
		),
	)
	s.AddTool(searchEmailsTool, common.InstrumentedToolHandlerWithService(
		"search_emails", instrumentation.ServiceMail, "query", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchEmails(ctx, request, sc)
		}))

	attachmentListTool := mcp.NewTool("get_attachment_list",
		mcp.WithDescription("List the attachments of one email with names, types, and sizes"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email whose attachments to list"),
		),
	)
	s.AddTool(attachmentListTool, common.InstrumentedToolHandlerWithService(
		"get_attachment_list", instrumentation.ServiceMail, "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetAttachmentList(ctx, request, sc)
		}))

	return nil
}

func handleListMailboxes(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	mailboxes, err := client.Mailboxes(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list mailboxes: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "list_mailboxes", mailboxes)
}

func handleListEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	var filter *jmap.EmailFilter
	if mailboxID := stringArg(args, "mailboxId"); mailboxID != "" {
		filter = &jmap.EmailFilter{InMailbox: mailboxID}
	}

	emails, err := client.ListEmails(ctx, filter, intArg(args, "position", 0), intArg(args, "limit", defaultListLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list emails: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "list_emails", emails)
}

func handleGetEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID := stringArg(args, "emailId")
	if emailID == "" {
		return mcp.NewToolResultError("emailId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	email, err := client.GetEmail(ctx, emailID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get email: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "get_email", email)
}

func handleGetThread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	threadID := stringArg(args, "threadId")
	if threadID == "" {
		return mcp.NewToolResultError("threadId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	thread, emails, err := client.GetThread(ctx, threadID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get thread: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "get_email_thread", map[string]any{
		"threadId": thread.ID,
		"emails":   emails,
	})
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	filter := &jmap.EmailFilter{
		Text:      stringArg(args, "query"),
		From:      stringArg(args, "from"),
		To:        stringArg(args, "to"),
		Subject:   stringArg(args, "subject"),
		InMailbox: stringArg(args, "mailboxId"),
		Before:    stringArg(args, "before"),
		After:     stringArg(args, "after"),
	}
	if value, ok := args["hasAttachment"].(bool); ok {
		filter.HasAttachment = &value
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	emails, err := client.ListEmails(ctx, filter, 0, intArg(args, "limit", defaultListLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search emails: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "search_emails", emails)
}

func handleGetAttachmentList(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID := stringArg(args, "emailId")
	if emailID == "" {
		return mcp.NewToolResultError("emailId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	email, err := client.GetEmail(ctx, emailID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get email: %v", err)), nil
	}

	attachments := email.Attachments
	if attachments == nil {
		attachments = []jmap.EmailBodyPart{}
	}
	return common.MarkedResult(ctx, sc, "get_attachment_list", map[string]any{
		"emailId":     emailID,
		"attachments": attachments,
	})
}
