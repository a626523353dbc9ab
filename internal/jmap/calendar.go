package jmap

import (
	"context"
	"encoding/json"
	"fmt"
)

// Participation statuses a respond operation may set (RFC 8984).
var participationStatuses = map[string]bool{
	"accepted":     true,
	"declined":     true,
	"tentative":    true,
	"needs-action": true,
}

func (c *Client) calendarAccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.session.PrimaryAccounts[CapabilityCalendars]; ok {
		return id
	}
	return c.accountID
}

// Calendars returns all calendars of the account.
func (c *Client) Calendars(ctx context.Context) ([]*Calendar, error) {
	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityCalendars}, "Calendar/get", map[string]any{
		"accountId": c.calendarAccountID(),
		"ids":       nil,
	})
	if err != nil {
		return nil, err
	}

	var envelope getResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Calendar/get response: %w", err)
	}
	var calendars []*Calendar
	if err := json.Unmarshal(envelope.List, &calendars); err != nil {
		return nil, fmt.Errorf("failed to decode calendar list: %w", err)
	}
	return calendars, nil
}

// QueryCalendarEvents returns event ids matching the filter, soonest first.
func (c *Client) QueryCalendarEvents(ctx context.Context, filter *CalendarEventFilter, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	args := map[string]any{
		"accountId": c.calendarAccountID(),
		"sort": []map[string]any{
			{"property": "start", "isAscending": true},
		},
		"limit": limit,
	}
	if filter != nil {
		args["filter"] = filter
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityCalendars}, "CalendarEvent/query", args)
	if err != nil {
		return nil, err
	}

	var envelope queryResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode CalendarEvent/query response: %w", err)
	}
	return envelope.IDs, nil
}

// GetCalendarEvents fetches events by id.
func (c *Client) GetCalendarEvents(ctx context.Context, ids []string) ([]*CalendarEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityCalendars}, "CalendarEvent/get", map[string]any{
		"accountId": c.calendarAccountID(),
		"ids":       ids,
	})
	if err != nil {
		return nil, err
	}

	var envelope getResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode CalendarEvent/get response: %w", err)
	}
	var events []*CalendarEvent
	if err := json.Unmarshal(envelope.List, &events); err != nil {
		return nil, fmt.Errorf("failed to decode event list: %w", err)
	}
	return events, nil
}

// GetCalendarEvent fetches a single event.
func (c *Client) GetCalendarEvent(ctx context.Context, id string) (*CalendarEvent, error) {
	events, err := c.GetCalendarEvents(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("calendar event %s not found", id)
	}
	return events[0], nil
}

// ListCalendarEvents queries and fetches events in one step.
func (c *Client) ListCalendarEvents(ctx context.Context, filter *CalendarEventFilter, limit int) ([]*CalendarEvent, error) {
	ids, err := c.QueryCalendarEvents(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	return c.GetCalendarEvents(ctx, ids)
}

// CreateCalendarEvent creates an event and returns it with its server id.
func (c *Client) CreateCalendarEvent(ctx context.Context, event *CalendarEvent) (*CalendarEvent, error) {
	if len(event.CalendarIDs) == 0 {
		calendars, err := c.Calendars(ctx)
		if err != nil {
			return nil, err
		}
		if len(calendars) == 0 {
			return nil, fmt.Errorf("account has no calendars")
		}
		target := calendars[0]
		for _, calendar := range calendars {
			if calendar.IsDefault {
				target = calendar
				break
			}
		}
		event.CalendarIDs = map[string]bool{target.ID: true}
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityCalendars}, "CalendarEvent/set", map[string]any{
		"accountId": c.calendarAccountID(),
		"create":    map[string]any{"event": event},
	})
	if err != nil {
		return nil, err
	}

	var envelope setResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode CalendarEvent/set response: %w", err)
	}
	created, ok := envelope.Created["event"]
	if !ok {
		return nil, setError("create", "event", envelope.NotCreated)
	}
	var out CalendarEvent
	if err := json.Unmarshal(created, &out); err != nil {
		return nil, fmt.Errorf("failed to decode created event: %w", err)
	}
	if out.Title == "" {
		out.Title = event.Title
	}
	return &out, nil
}

// UpdateCalendarEvent applies a JMAP patch to one event.
func (c *Client) UpdateCalendarEvent(ctx context.Context, id string, patch map[string]any) error {
	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityCalendars}, "CalendarEvent/set", map[string]any{
		"accountId": c.calendarAccountID(),
		"update":    map[string]any{id: patch},
	})
	if err != nil {
		return err
	}

	var envelope setResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode CalendarEvent/set response: %w", err)
	}
	if _, ok := envelope.Updated[id]; !ok {
		return setError("update", id, envelope.NotUpdated)
	}
	return nil
}

// DeleteCalendarEvent destroys an event.
func (c *Client) DeleteCalendarEvent(ctx context.Context, id string) error {
	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityCalendars}, "CalendarEvent/set", map[string]any{
		"accountId": c.calendarAccountID(),
		"destroy":   []string{id},
	})
	if err != nil {
		return err
	}

	var envelope setResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode CalendarEvent/set response: %w", err)
	}
	for _, destroyed := range envelope.Destroyed {
		if destroyed == id {
			return nil
		}
	}
	return setError("destroy", id, envelope.NotDestroyed)
}

// RespondToCalendarEvent sets the account's own participation status on an
// event.
func (c *Client) RespondToCalendarEvent(ctx context.Context, id, status string) error {
	if !participationStatuses[status] {
		return fmt.Errorf("invalid participation status %q", status)
	}

	event, err := c.GetCalendarEvent(ctx, id)
	if err != nil {
		return err
	}

	account := c.Account()
	participantID := ""
	for pid, participant := range event.Participants {
		if participant.Email == account {
			participantID = pid
			break
		}
	}
	if participantID == "" {
		return fmt.Errorf("account is not a participant of event %s", id)
	}

	return c.UpdateCalendarEvent(ctx, id, map[string]any{
		"participants/" + participantID + "/participationStatus": status,
	})
}
