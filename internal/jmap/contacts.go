package jmap

import (
	"context"
	"encoding/json"
	"fmt"
)

// contactAccountID returns the account to address contact calls to,
// preferring a dedicated contacts primary account when the provider
// announces one.
func (c *Client) contactAccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.session.PrimaryAccounts[CapabilityContacts]; ok {
		return id
	}
	return c.accountID
}

// QueryContacts returns contact ids matching the filter text, or all
// contacts when text is empty.
func (c *Client) QueryContacts(ctx context.Context, text string, position, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	args := map[string]any{
		"accountId": c.contactAccountID(),
		"position":  position,
		"limit":     limit,
	}
	if text != "" {
		args["filter"] = map[string]any{"text": text}
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityContacts}, "Contact/query", args)
	if err != nil {
		return nil, err
	}

	var envelope queryResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Contact/query response: %w", err)
	}
	return envelope.IDs, nil
}

// GetContacts fetches contacts by id.
func (c *Client) GetContacts(ctx context.Context, ids []string) ([]*Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityContacts}, "Contact/get", map[string]any{
		"accountId": c.contactAccountID(),
		"ids":       ids,
	})
	if err != nil {
		return nil, err
	}

	var envelope getResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Contact/get response: %w", err)
	}
	var contacts []*Contact
	if err := json.Unmarshal(envelope.List, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contact list: %w", err)
	}
	return contacts, nil
}

// GetContact fetches a single contact.
func (c *Client) GetContact(ctx context.Context, id string) (*Contact, error) {
	contacts, err := c.GetContacts(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("contact %s not found", id)
	}
	return contacts[0], nil
}

// ListContacts queries and fetches contacts in one step.
func (c *Client) ListContacts(ctx context.Context, position, limit int) ([]*Contact, error) {
	ids, err := c.QueryContacts(ctx, "", position, limit)
	if err != nil {
		return nil, err
	}
	return c.GetContacts(ctx, ids)
}

// SearchContacts queries and fetches contacts matching text.
func (c *Client) SearchContacts(ctx context.Context, text string, limit int) ([]*Contact, error) {
	ids, err := c.QueryContacts(ctx, text, 0, limit)
	if err != nil {
		return nil, err
	}
	return c.GetContacts(ctx, ids)
}
