package calendar_tools

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

const defaultEventLimit = 50

// RegisterCalendarReadTools registers the read-only calendar tools
func RegisterCalendarReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listCalendarsTool := mcp.NewTool("list_calendars",
		mcp.WithDescription("List the account's calendars"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
	)
	s.AddTool(listCalendarsTool, common.InstrumentedToolHandlerWithService(
		"list_calendars", instrumentation.ServiceCalendar, "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	listEventsTool := mcp.NewTool("list_calendar_events",
		mcp.WithDescription("List calendar events, optionally within a time window"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Restrict the listing to this calendar ID"),
		),
		mcp.WithString("after",
			mcp.Description("Only events starting after this RFC 3339 timestamp"),
		),
		mcp.WithString("before",
			mcp.Description("Only events starting before this RFC 3339 timestamp"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text search across event fields"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of events to return (default: 50)"),
		),
	)
	s.AddTool(listEventsTool, common.InstrumentedToolHandlerWithService(
		"list_calendar_events", instrumentation.ServiceCalendar, "query", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	getEventTool := mcp.NewTool("get_calendar_event",
		mcp.WithDescription("Get one calendar event by ID"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to fetch"),
		),
	)
	s.AddTool(getEventTool, common.InstrumentedToolHandlerWithService(
		"get_calendar_event", instrumentation.ServiceCalendar, "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	return nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	calendars, err := client.Calendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list calendars: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "list_calendars", calendars)
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	filter := &jmap.CalendarEventFilter{
		After:  stringArg(args, "after"),
		Before: stringArg(args, "before"),
		Text:   stringArg(args, "query"),
	}
	if calendarID := stringArg(args, "calendarId"); calendarID != "" {
		filter.InCalendars = []string{calendarID}
	}

	events, err := client.ListCalendarEvents(ctx, filter, intArg(args, "limit", defaultEventLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list calendar events: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "list_calendar_events", events)
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID := stringArg(args, "eventId")
	if eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	event, err := client.GetCalendarEvent(ctx, eventID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get calendar event: %v", err)), nil
	}

	return common.MarkedResult(ctx, sc, "get_calendar_event", event)
}
