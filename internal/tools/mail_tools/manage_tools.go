package mail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/instrumentation"
	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/server"
	"github.com/petrel-mail/petrel/internal/tools/batch"
	"github.com/petrel-mail/petrel/internal/tools/common"
)

// RegisterManageTools registers the inbox management tools
func RegisterManageTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	markReadTool := mcp.NewTool("mark_email_read",
		mcp.WithDescription("Mark an email as read"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to mark"),
		),
	)
	s.AddTool(markReadTool, common.InstrumentedToolHandlerWithService(
		"mark_email_read", instrumentation.ServiceMail, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSetKeyword(ctx, request, sc, jmap.KeywordSeen, true, "marked read")
		}))

	markUnreadTool := mcp.NewTool("mark_email_unread",
		mcp.WithDescription("Mark an email as unread"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to mark"),
		),
	)
	s.AddTool(markUnreadTool, common.InstrumentedToolHandlerWithService(
		"mark_email_unread", instrumentation.ServiceMail, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSetKeyword(ctx, request, sc, jmap.KeywordSeen, false, "marked unread")
		}))

	flagTool := mcp.NewTool("flag_email",
		mcp.WithDescription("Flag or unflag an email"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to flag"),
		),
		mcp.WithBoolean("flagged",
			mcp.Description("Set false to remove the flag (default: true)"),
		),
	)
	s.AddTool(flagTool, common.InstrumentedToolHandlerWithService(
		"flag_email", instrumentation.ServiceMail, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			flagged := boolArg(request.GetArguments(), "flagged", true)
			verb := "flagged"
			if !flagged {
				verb = "unflagged"
			}
			return handleSetKeyword(ctx, request, sc, jmap.KeywordFlagged, flagged, verb)
		}))

	archiveTool := mcp.NewTool("archive_email",
		mcp.WithDescription("Move one or more emails to the archive mailbox"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to archive, or an array of IDs"),
		),
	)
	s.AddTool(archiveTool, common.InstrumentedToolHandlerWithService(
		"archive_email", instrumentation.ServiceMail, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleArchiveEmail(ctx, request, sc)
		}))

	deleteTool := mcp.NewTool("delete_email",
		mcp.WithDescription("Move one or more emails to the trash mailbox"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to delete, or an array of IDs"),
		),
	)
	s.AddTool(deleteTool, common.InstrumentedToolHandlerWithService(
		"delete_email", instrumentation.ServiceMail, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEmail(ctx, request, sc)
		}))

	moveTool := mcp.NewTool("move_email",
		mcp.WithDescription("Move an email to another mailbox"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to move"),
		),
		mcp.WithString("mailboxId",
			mcp.Required(),
			mcp.Description("The ID of the destination mailbox"),
		),
	)
	s.AddTool(moveTool, common.InstrumentedToolHandlerWithService(
		"move_email", instrumentation.ServiceMail, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMoveEmail(ctx, request, sc)
		}))

	return nil
}

func handleSetKeyword(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, keyword string, value bool, verb string) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID := stringArg(args, "emailId")
	if emailID == "" {
		return mcp.NewToolResultError("emailId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.SetEmailKeyword(ctx, emailID, keyword, value); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update email: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Email %s %s", emailID, verb)), nil
}

func handleArchiveEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailIDs, err := batch.ParseStringOrArray(args["emailId"], "emailId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if len(emailIDs) == 1 {
		if err := client.ArchiveEmail(ctx, emailIDs[0]); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to archive email: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Email %s archived", emailIDs[0])), nil
	}

	results := batch.ProcessBatch(emailIDs, func(emailID string) (string, error) {
		if err := client.ArchiveEmail(ctx, emailID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Email %s archived", emailID), nil
	})
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleDeleteEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailIDs, err := batch.ParseStringOrArray(args["emailId"], "emailId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if len(emailIDs) == 1 {
		if err := client.DeleteEmail(ctx, emailIDs[0]); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete email: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Email %s moved to trash", emailIDs[0])), nil
	}

	results := batch.ProcessBatch(emailIDs, func(emailID string) (string, error) {
		if err := client.DeleteEmail(ctx, emailID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Email %s moved to trash", emailID), nil
	})
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleMoveEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID := stringArg(args, "emailId")
	if emailID == "" {
		return mcp.NewToolResultError("emailId is required"), nil
	}
	mailboxID := stringArg(args, "mailboxId")
	if mailboxID == "" {
		return mcp.NewToolResultError("mailboxId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.MoveEmail(ctx, emailID, mailboxID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to move email: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Email %s moved to mailbox %s", emailID, mailboxID)), nil
}
