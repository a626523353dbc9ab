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

// RegisterCalendarWriteTools registers the calendar tools that change state
func RegisterCalendarWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createEventTool := mcp.NewTool("create_calendar_event",
		mcp.WithDescription("Create a calendar event"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time as a JSCalendar LocalDateTime, e.g. 2026-09-01T10:00:00"),
		),
		mcp.WithString("duration",
			mcp.Description("Event duration as an ISO 8601 duration, e.g. PT1H (default: PT1H)"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for the event, e.g. Europe/Berlin"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location name"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar to create the event in (default: the account's default calendar)"),
		),
	)
	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithService(
		"create_calendar_event", instrumentation.ServiceCalendar, "create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	updateEventTool := mcp.NewTool("update_calendar_event",
		mcp.WithDescription("Update fields of an existing calendar event"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to update"),
		),
		mcp.WithString("title",
			mcp.Description("New event title"),
		),
		mcp.WithString("description",
			mcp.Description("New event description"),
		),
		mcp.WithString("start",
			mcp.Description("New start time as a JSCalendar LocalDateTime"),
		),
		mcp.WithString("duration",
			mcp.Description("New duration as an ISO 8601 duration"),
		),
		mcp.WithString("timeZone",
			mcp.Description("New IANA time zone"),
		),
		mcp.WithString("status",
			mcp.Description("New event status: confirmed, cancelled or tentative"),
		),
	)
	s.AddTool(updateEventTool, common.InstrumentedToolHandlerWithService(
		"update_calendar_event", instrumentation.ServiceCalendar, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, sc)
		}))

	deleteEventTool := mcp.NewTool("delete_calendar_event",
		mcp.WithDescription("Delete a calendar event"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to delete"),
		),
	)
	s.AddTool(deleteEventTool, common.InstrumentedToolHandlerWithService(
		"delete_calendar_event", instrumentation.ServiceCalendar, "delete", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, sc)
		}))

	respondEventTool := mcp.NewTool("respond_to_calendar_event",
		mcp.WithDescription("Set the authenticated user's participation status on an event invitation"),
		mcp.WithString("account",
			mcp.Description("Account identity (default: the authenticated user)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to respond to"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("Participation status: accepted, declined, tentative or needs-action"),
		),
	)
	s.AddTool(respondEventTool, common.InstrumentedToolHandlerWithService(
		"respond_to_calendar_event", instrumentation.ServiceCalendar, "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRespondEvent(ctx, request, sc)
		}))

	return nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	title := stringArg(args, "title")
	start := stringArg(args, "start")
	if title == "" || start == "" {
		return mcp.NewToolResultError("title and start are required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	event := &jmap.CalendarEvent{
		Title:       title,
		Start:       start,
		Duration:    stringArg(args, "duration"),
		TimeZone:    stringArg(args, "timeZone"),
		Description: stringArg(args, "description"),
	}
	if event.Duration == "" {
		event.Duration = "PT1H"
	}
	if location := stringArg(args, "location"); location != "" {
		event.Locations = map[string]jmap.Location{
			"loc": {Name: location},
		}
	}
	if calendarID := stringArg(args, "calendarId"); calendarID != "" {
		event.CalendarIDs = map[string]bool{calendarID: true}
	}

	created, err := client.CreateCalendarEvent(ctx, event)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create calendar event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event %s created: %s at %s", created.ID, created.Title, created.Start)), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID := stringArg(args, "eventId")
	if eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	patch := map[string]any{}
	for _, field := range []string{"title", "description", "start", "duration", "timeZone", "status"} {
		if value := stringArg(args, field); value != "" {
			patch[field] = value
		}
	}
	if len(patch) == 0 {
		return mcp.NewToolResultError("nothing to update: provide at least one of title, description, start, duration, timeZone or status"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.UpdateCalendarEvent(ctx, eventID, patch); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update calendar event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event %s updated", eventID)), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID := stringArg(args, "eventId")
	if eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.DeleteCalendarEvent(ctx, eventID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete calendar event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted", eventID)), nil
}

func handleRespondEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID := stringArg(args, "eventId")
	status := stringArg(args, "status")
	if eventID == "" || status == "" {
		return mcp.NewToolResultError("eventId and status are required"), nil
	}

	client, errResult := common.ClientForRequest(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.RespondToCalendarEvent(ctx, eventID, status); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to respond to calendar event: %v", err)), nil
	}

	event, err := client.GetCalendarEvent(ctx, eventID)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Response %q recorded for event %s", status, eventID)), nil
	}

	return common.MarkedResult(ctx, sc, "respond_to_calendar_event", event)
}
