// Package calendar_tools provides MCP tools for JMAP calendars.
//
// Reading:
//   - list_calendars
//   - list_calendar_events
//   - get_calendar_event
//
// Writing (disabled in read-only mode):
//   - create_calendar_event
//   - update_calendar_event
//   - delete_calendar_event
//   - respond_to_calendar_event
package calendar_tools
