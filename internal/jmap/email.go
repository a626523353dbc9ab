package jmap

import (
	"context"
	"encoding/json"
	"fmt"
)

// Mailbox roles as defined by RFC 8457.
const (
	RoleInbox   = "inbox"
	RoleArchive = "archive"
	RoleTrash   = "trash"
	RoleDrafts  = "drafts"
	RoleSent    = "sent"
)

// Email keywords with protocol meaning (RFC 8621 section 4.1.1).
const (
	KeywordSeen    = "$seen"
	KeywordFlagged = "$flagged"
	KeywordDraft   = "$draft"
)

// emailListProperties is what list and search views fetch.
var emailListProperties = []string{
	"id", "threadId", "mailboxIds", "keywords", "size", "receivedAt",
	"sender", "from", "to", "cc", "bcc", "replyTo", "subject", "sentAt",
	"preview", "hasAttachment",
}

// emailFullProperties additionally fetches headers and body content.
var emailFullProperties = append(append([]string{}, emailListProperties...),
	"blobId", "messageId", "inReplyTo", "references",
	"bodyValues", "textBody", "htmlBody", "attachments",
)

const maxBodyValueBytes = 256 * 1024

// QueryEmails returns email ids matching the filter, newest first.
func (c *Client) QueryEmails(ctx context.Context, filter *EmailFilter, position, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	args := map[string]any{
		"accountId": c.accountID,
		"sort": []map[string]any{
			{"property": "receivedAt", "isAscending": false},
		},
		"position": position,
		"limit":    limit,
	}
	if filter != nil {
		args["filter"] = filter
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail}, "Email/query", args)
	if err != nil {
		return nil, err
	}

	var envelope queryResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Email/query response: %w", err)
	}
	return envelope.IDs, nil
}

// GetEmails fetches emails by id. When full is true body values and
// threading headers are included.
func (c *Client) GetEmails(ctx context.Context, ids []string, full bool) ([]*Email, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := map[string]any{
		"accountId":  c.accountID,
		"ids":        ids,
		"properties": emailListProperties,
	}
	if full {
		args["properties"] = emailFullProperties
		args["fetchAllBodyValues"] = true
		args["maxBodyValueBytes"] = maxBodyValueBytes
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail}, "Email/get", args)
	if err != nil {
		return nil, err
	}

	var envelope getResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Email/get response: %w", err)
	}
	var emails []*Email
	if err := json.Unmarshal(envelope.List, &emails); err != nil {
		return nil, fmt.Errorf("failed to decode email list: %w", err)
	}
	return emails, nil
}

// GetEmail fetches a single email with its full body.
func (c *Client) GetEmail(ctx context.Context, id string) (*Email, error) {
	emails, err := c.GetEmails(ctx, []string{id}, true)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("email %s not found", id)
	}
	return emails[0], nil
}

// ListEmails queries and fetches emails in one step.
func (c *Client) ListEmails(ctx context.Context, filter *EmailFilter, position, limit int) ([]*Email, error) {
	ids, err := c.QueryEmails(ctx, filter, position, limit)
	if err != nil {
		return nil, err
	}
	return c.GetEmails(ctx, ids, false)
}

// GetThread fetches a thread and all emails in it, oldest first.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, []*Email, error) {
	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail}, "Thread/get", map[string]any{
		"accountId": c.accountID,
		"ids":       []string{threadID},
	})
	if err != nil {
		return nil, nil, err
	}

	var envelope getResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to decode Thread/get response: %w", err)
	}
	var threads []*Thread
	if err := json.Unmarshal(envelope.List, &threads); err != nil {
		return nil, nil, fmt.Errorf("failed to decode thread list: %w", err)
	}
	if len(threads) == 0 {
		return nil, nil, fmt.Errorf("thread %s not found", threadID)
	}

	emails, err := c.GetEmails(ctx, threads[0].EmailIDs, true)
	if err != nil {
		return nil, nil, err
	}
	return threads[0], emails, nil
}

// updateEmail applies a JMAP patch to one email.
func (c *Client) updateEmail(ctx context.Context, id string, patch map[string]any) error {
	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail}, "Email/set", map[string]any{
		"accountId": c.accountID,
		"update":    map[string]any{id: patch},
	})
	if err != nil {
		return err
	}

	var envelope setResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode Email/set response: %w", err)
	}
	if _, ok := envelope.Updated[id]; !ok {
		return setError("update", id, envelope.NotUpdated)
	}
	return nil
}

// SetEmailKeyword sets or clears one keyword on an email.
func (c *Client) SetEmailKeyword(ctx context.Context, id, keyword string, value bool) error {
	patchValue := any(true)
	if !value {
		patchValue = nil
	}
	return c.updateEmail(ctx, id, map[string]any{
		"keywords/" + keyword: patchValue,
	})
}

// MoveEmail moves an email so it lives only in the given mailbox.
func (c *Client) MoveEmail(ctx context.Context, id, mailboxID string) error {
	return c.updateEmail(ctx, id, map[string]any{
		"mailboxIds": map[string]bool{mailboxID: true},
	})
}

// ArchiveEmail moves an email to the archive mailbox.
func (c *Client) ArchiveEmail(ctx context.Context, id string) error {
	archiveID, err := c.MailboxIDByRole(ctx, RoleArchive)
	if err != nil {
		return err
	}
	return c.MoveEmail(ctx, id, archiveID)
}

// DeleteEmail moves an email to the trash mailbox. Mail is never destroyed
// through the tool surface.
func (c *Client) DeleteEmail(ctx context.Context, id string) error {
	trashID, err := c.MailboxIDByRole(ctx, RoleTrash)
	if err != nil {
		return err
	}
	return c.MoveEmail(ctx, id, trashID)
}

// CreateDraft creates an email in the drafts mailbox and returns it.
func (c *Client) CreateDraft(ctx context.Context, draft *EmailCreate) (*Email, error) {
	draftsID, err := c.MailboxIDByRole(ctx, RoleDrafts)
	if err != nil {
		return nil, err
	}
	if draft.MailboxIDs == nil {
		draft.MailboxIDs = map[string]bool{draftsID: true}
	}
	if draft.Keywords == nil {
		draft.Keywords = map[string]bool{}
	}
	draft.Keywords[KeywordDraft] = true
	draft.Keywords[KeywordSeen] = true

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail}, "Email/set", map[string]any{
		"accountId": c.accountID,
		"create":    map[string]any{"draft": draft},
	})
	if err != nil {
		return nil, err
	}

	var envelope setResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Email/set response: %w", err)
	}
	created, ok := envelope.Created["draft"]
	if !ok {
		return nil, setError("create", "draft", envelope.NotCreated)
	}
	var email Email
	if err := json.Unmarshal(created, &email); err != nil {
		return nil, fmt.Errorf("failed to decode created draft: %w", err)
	}
	return &email, nil
}

// UpdateDraft applies a patch to a draft email.
func (c *Client) UpdateDraft(ctx context.Context, id string, patch map[string]any) error {
	return c.updateEmail(ctx, id, patch)
}

// DestroyEmail permanently removes an email. Only drafts go through this.
func (c *Client) DestroyEmail(ctx context.Context, id string) error {
	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail}, "Email/set", map[string]any{
		"accountId": c.accountID,
		"destroy":   []string{id},
	})
	if err != nil {
		return err
	}

	var envelope setResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode Email/set response: %w", err)
	}
	for _, destroyed := range envelope.Destroyed {
		if destroyed == id {
			return nil
		}
	}
	return setError("destroy", id, envelope.NotDestroyed)
}

// identity returns the submission identity matching the account, falling
// back to the first identity the server offers.
func (c *Client) identity(ctx context.Context) (*Identity, error) {
	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail, CapabilitySubmission}, "Identity/get", map[string]any{
		"accountId": c.accountID,
		"ids":       nil,
	})
	if err != nil {
		return nil, err
	}

	var envelope getResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Identity/get response: %w", err)
	}
	var identities []*Identity
	if err := json.Unmarshal(envelope.List, &identities); err != nil {
		return nil, fmt.Errorf("failed to decode identity list: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("account has no submission identity")
	}

	account := c.Account()
	for _, identity := range identities {
		if identity.Email == account {
			return identity, nil
		}
	}
	return identities[0], nil
}

// SubmitEmail hands an existing email to the submission service and files
// it in the sent mailbox.
func (c *Client) SubmitEmail(ctx context.Context, emailID string) error {
	identity, err := c.identity(ctx)
	if err != nil {
		return err
	}

	raw, err := c.call(ctx, []string{CapabilityCore, CapabilityMail, CapabilitySubmission}, "EmailSubmission/set", map[string]any{
		"accountId": c.accountID,
		"create": map[string]any{
			"submission": map[string]any{
				"emailId":    emailID,
				"identityId": identity.ID,
			},
		},
	})
	if err != nil {
		return err
	}

	var envelope setResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode EmailSubmission/set response: %w", err)
	}
	if _, ok := envelope.Created["submission"]; !ok {
		return setError("create", "submission", envelope.NotCreated)
	}

	// File the message in sent. Failures here leave the mail sent but
	// misplaced, which is not worth failing the operation over.
	if sentID, roleErr := c.MailboxIDByRole(ctx, RoleSent); roleErr == nil {
		_ = c.updateEmail(ctx, emailID, map[string]any{
			"mailboxIds":                map[string]bool{sentID: true},
			"keywords/" + KeywordDraft: nil,
		})
	}
	return nil
}

// SendEmail creates an email and submits it in one step.
func (c *Client) SendEmail(ctx context.Context, email *EmailCreate) (*Email, error) {
	created, err := c.CreateDraft(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := c.SubmitEmail(ctx, created.ID); err != nil {
		return nil, err
	}
	return created, nil
}
