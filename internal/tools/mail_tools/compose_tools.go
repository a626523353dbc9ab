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

// RegisterComposeTools registers draft, reply, and send tools
func RegisterComposeTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createDraftTool := mcp.NewTool("create_draft",
		mcp.WithDescription("Create a draft email without sending it"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient address(es), comma-separated or an array"),
		),
		mcp.WithString("cc",
			mcp.Description("Cc address(es)"),
		),
		mcp.WithString("bcc",
			mcp.Description("Bcc address(es)"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Subject line"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Plain-text message body"),
		),
	)
	s.AddTool(createDraftTool, common.InstrumentedToolHandlerWithService(
		"create_draft", instrumentation.ServiceMail, "create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateDraft(ctx, request, sc)
		}))

	updateDraftTool := mcp.NewTool("update_draft",
		mcp.WithDescription("Update the subject or body of an existing draft"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("draftId",
			mcp.Required(),
			mcp.Description("The ID of the draft to update"),
		),
		mcp.WithString("subject",
			mcp.Description("New subject line"),
		),
		mcp.WithString("body",
			mcp.Description("New plain-text body, replacing the current one"),
		),
	)
	s.AddTool(updateDraftTool, common.InstrumentedToolHandlerWithService(
		"update_draft", instrumentation.ServiceMail, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateDraft(ctx, request, sc)
		}))

	deleteDraftTool := mcp.NewTool("delete_draft",
		mcp.WithDescription("Permanently delete a draft"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("draftId",
			mcp.Required(),
			mcp.Description("The ID of the draft to delete"),
		),
	)
	s.AddTool(deleteDraftTool, common.InstrumentedToolHandlerWithService(
		"delete_draft", instrumentation.ServiceMail, "destroy", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteDraft(ctx, request, sc)
		}))

	replyTool := mcp.NewTool("reply_to_email",
		mcp.WithDescription("Reply to an email. Creates a draft by default; set sendImmediately to submit it for delivery"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email to reply to"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Plain-text reply body; the original is quoted below it"),
		),
		mcp.WithBoolean("replyAll",
			mcp.Description("Reply to all original recipients (default: false)"),
		),
		mcp.WithBoolean("sendImmediately",
			mcp.Description("Send the reply now instead of saving a draft (default: false)"),
		),
	)
	s.AddTool(replyTool, common.InstrumentedToolHandlerWithService(
		"reply_to_email", instrumentation.ServiceSubmission, "reply", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleReplyToEmail(ctx, request, sc)
		}))

	sendTool := mcp.NewTool("send_email",
		mcp.WithDescription("Compose and send an email immediately"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient address(es), comma-separated or an array"),
		),
		mcp.WithString("cc",
			mcp.Description("Cc address(es)"),
		),
		mcp.WithString("bcc",
			mcp.Description("Bcc address(es)"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Subject line"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Plain-text message body"),
		),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandlerWithService(
		"send_email", instrumentation.ServiceSubmission, "send", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendEmail(ctx, request, sc)
		}))

	return nil
}

// buildMessage assembles an outgoing message from request arguments.
func buildMessage(client *jmap.Client, args map[string]interface{}) (*jmap.EmailCreate, *mcp.CallToolResult) {
	to, err := addressListArg(args, "to")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	if len(to) == 0 {
		return nil, mcp.NewToolResultError("to is required")
	}
	cc, err := addressListArg(args, "cc")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	bcc, err := addressListArg(args, "bcc")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}

	subject := stringArg(args, "subject")
	if subject == "" {
		return nil, mcp.NewToolResultError("subject is required")
	}
	body := stringArg(args, "body")
	if body == "" {
		return nil, mcp.NewToolResultError("body is required")
	}

	from := jmap.EmailAddress{Email: client.Account()}
	return jmap.NewMessage(from, to, cc, bcc, subject, body), nil
}

func handleCreateDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	message, errResult := buildMessage(client, args)
	if errResult != nil {
		return errResult, nil
	}

	draft, err := client.CreateDraft(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create draft: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Draft created with ID %s", draft.ID)), nil
}

func handleUpdateDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	draftID := stringArg(args, "draftId")
	if draftID == "" {
		return mcp.NewToolResultError("draftId is required"), nil
	}

	patch := map[string]any{}
	if subject := stringArg(args, "subject"); subject != "" {
		patch["subject"] = subject
	}
	if body := stringArg(args, "body"); body != "" {
		patch["textBody"] = []jmap.EmailBodyPart{{PartID: "text", Type: "text/plain"}}
		patch["bodyValues"] = map[string]jmap.EmailBodyValue{
			"text": {Value: body},
		}
	}
	if len(patch) == 0 {
		return mcp.NewToolResultError("nothing to update: provide subject or body"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.UpdateDraft(ctx, draftID, patch); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update draft: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Draft %s updated", draftID)), nil
}

func handleDeleteDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	draftID := stringArg(args, "draftId")
	if draftID == "" {
		return mcp.NewToolResultError("draftId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.DestroyEmail(ctx, draftID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete draft: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Draft %s deleted", draftID)), nil
}

func handleReplyToEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID := stringArg(args, "emailId")
	if emailID == "" {
		return mcp.NewToolResultError("emailId is required"), nil
	}
	body := stringArg(args, "body")
	if body == "" {
		return mcp.NewToolResultError("body is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	original, err := client.GetEmail(ctx, emailID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load original email: %v", err)), nil
	}

	from := jmap.EmailAddress{Email: client.Account()}
	reply := jmap.BuildReply(original, from, body, boolArg(args, "replyAll", false))

	if boolArg(args, "sendImmediately", false) {
		sent, err := client.SendEmail(ctx, reply)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to send reply: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Reply sent with ID %s", sent.ID)), nil
	}

	draft, err := client.CreateDraft(ctx, reply)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create reply draft: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reply draft created with ID %s", draft.ID)), nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	message, errResult := buildMessage(client, args)
	if errResult != nil {
		return errResult, nil
	}

	sent, err := client.SendEmail(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send email: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Email sent with ID %s", sent.ID)), nil
}
