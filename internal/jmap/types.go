package jmap

import (
	"encoding/json"
	"fmt"
)

// Capability URNs used in request "using" lists.
const (
	CapabilityCore       = "urn:ietf:params:jmap:core"
	CapabilityMail       = "urn:ietf:params:jmap:mail"
	CapabilitySubmission = "urn:ietf:params:jmap:submission"
	CapabilityContacts   = "urn:ietf:params:jmap:contacts"
	CapabilityCalendars  = "urn:ietf:params:jmap:calendars"
)

// Session is the JMAP session resource (RFC 8620 section 2).
type Session struct {
	Capabilities    map[string]json.RawMessage `json:"capabilities"`
	Accounts        map[string]Account         `json:"accounts"`
	PrimaryAccounts map[string]string          `json:"primaryAccounts"`
	Username        string                     `json:"username"`
	APIURL          string                     `json:"apiUrl"`
	DownloadURL     string                     `json:"downloadUrl"`
	UploadURL       string                     `json:"uploadUrl"`
	State           string                     `json:"state"`
}

// Account describes one account visible through a session.
type Account struct {
	Name       string `json:"name"`
	IsPersonal bool   `json:"isPersonal"`
	IsReadOnly bool   `json:"isReadOnly"`
}

// Request is a JMAP API request envelope.
type Request struct {
	Using       []string     `json:"using"`
	MethodCalls []Invocation `json:"methodCalls"`
}

// Response is a JMAP API response envelope.
type Response struct {
	MethodResponses []Invocation `json:"methodResponses"`
	SessionState    string       `json:"sessionState"`
}

// Invocation is a single method call or response, serialized on the wire as
// a three-element array of name, arguments and call id.
type Invocation struct {
	Name   string
	Args   json.RawMessage
	CallID string
}

func (i Invocation) MarshalJSON() ([]byte, error) {
	args := i.Args
	if args == nil {
		args = json.RawMessage(`{}`)
	}
	return json.Marshal([]any{i.Name, args, i.CallID})
}

func (i *Invocation) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("invocation must have 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &i.Name); err != nil {
		return err
	}
	i.Args = parts[1]
	return json.Unmarshal(parts[2], &i.CallID)
}

// MethodError is a method-level "error" response (RFC 8620 section 3.6.2).
type MethodError struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// SetError describes why a create, update or destroy was rejected.
type SetError struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Mailbox is a JMAP Mailbox object (RFC 8621 section 2).
type Mailbox struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ParentID      string `json:"parentId,omitempty"`
	Role          string `json:"role,omitempty"`
	SortOrder     uint   `json:"sortOrder"`
	TotalEmails   uint   `json:"totalEmails"`
	UnreadEmails  uint   `json:"unreadEmails"`
	TotalThreads  uint   `json:"totalThreads"`
	UnreadThreads uint   `json:"unreadThreads"`
}

// Thread is a JMAP Thread object (RFC 8621 section 3).
type Thread struct {
	ID       string   `json:"id"`
	EmailIDs []string `json:"emailIds"`
}

// EmailAddress is a name/email pair on an Email header.
type EmailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// EmailBodyPart describes one part of an Email body structure.
type EmailBodyPart struct {
	PartID      string `json:"partId,omitempty"`
	BlobID      string `json:"blobId,omitempty"`
	Size        uint   `json:"size,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Charset     string `json:"charset,omitempty"`
	Disposition string `json:"disposition,omitempty"`
	CID         string `json:"cid,omitempty"`
}

// EmailBodyValue holds the decoded content of a body part.
type EmailBodyValue struct {
	Value             string `json:"value"`
	IsEncodingProblem bool   `json:"isEncodingProblem,omitempty"`
	IsTruncated       bool   `json:"isTruncated,omitempty"`
}

// Email is a JMAP Email object (RFC 8621 section 4), restricted to the
// properties the tools read and write.
type Email struct {
	ID            string                    `json:"id"`
	BlobID        string                    `json:"blobId,omitempty"`
	ThreadID      string                    `json:"threadId,omitempty"`
	MailboxIDs    map[string]bool           `json:"mailboxIds,omitempty"`
	Keywords      map[string]bool           `json:"keywords,omitempty"`
	Size          uint                      `json:"size,omitempty"`
	ReceivedAt    string                    `json:"receivedAt,omitempty"`
	MessageID     []string                  `json:"messageId,omitempty"`
	InReplyTo     []string                  `json:"inReplyTo,omitempty"`
	References    []string                  `json:"references,omitempty"`
	Sender        []EmailAddress            `json:"sender,omitempty"`
	From          []EmailAddress            `json:"from,omitempty"`
	To            []EmailAddress            `json:"to,omitempty"`
	Cc            []EmailAddress            `json:"cc,omitempty"`
	Bcc           []EmailAddress            `json:"bcc,omitempty"`
	ReplyTo       []EmailAddress            `json:"replyTo,omitempty"`
	Subject       string                    `json:"subject,omitempty"`
	SentAt        string                    `json:"sentAt,omitempty"`
	Preview       string                    `json:"preview,omitempty"`
	HasAttachment bool                      `json:"hasAttachment,omitempty"`
	BodyValues    map[string]EmailBodyValue `json:"bodyValues,omitempty"`
	TextBody      []EmailBodyPart           `json:"textBody,omitempty"`
	HTMLBody      []EmailBodyPart           `json:"htmlBody,omitempty"`
	Attachments   []EmailBodyPart           `json:"attachments,omitempty"`
}

// EmailCreate is the shape of an Email passed to Email/set create, used for
// drafts, replies and outbound mail.
type EmailCreate struct {
	MailboxIDs map[string]bool           `json:"mailboxIds"`
	Keywords   map[string]bool           `json:"keywords,omitempty"`
	From       []EmailAddress            `json:"from,omitempty"`
	To         []EmailAddress            `json:"to,omitempty"`
	Cc         []EmailAddress            `json:"cc,omitempty"`
	Bcc        []EmailAddress            `json:"bcc,omitempty"`
	ReplyTo    []EmailAddress            `json:"replyTo,omitempty"`
	Subject    string                    `json:"subject,omitempty"`
	InReplyTo  []string                  `json:"inReplyTo,omitempty"`
	References []string                  `json:"references,omitempty"`
	TextBody   []EmailBodyPart           `json:"textBody,omitempty"`
	BodyValues map[string]EmailBodyValue `json:"bodyValues,omitempty"`
}

// EmailFilter is the Email/query filter subset the tools expose.
type EmailFilter struct {
	InMailbox     string `json:"inMailbox,omitempty"`
	Text          string `json:"text,omitempty"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Body          string `json:"body,omitempty"`
	Before        string `json:"before,omitempty"`
	After         string `json:"after,omitempty"`
	HasKeyword    string `json:"hasKeyword,omitempty"`
	NotKeyword    string `json:"notKeyword,omitempty"`
	HasAttachment *bool  `json:"hasAttachment,omitempty"`
}

// ContactEmail is one email entry on a Contact.
type ContactEmail struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// ContactPhone is one phone entry on a Contact.
type ContactPhone struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// Contact is an address book entry.
type Contact struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	FirstName string         `json:"firstName,omitempty"`
	LastName  string         `json:"lastName,omitempty"`
	Company   string         `json:"company,omitempty"`
	JobTitle  string         `json:"jobTitle,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Emails    []ContactEmail `json:"emails,omitempty"`
	Phones    []ContactPhone `json:"phones,omitempty"`
}

// Calendar is a JMAP Calendar object.
type Calendar struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	IsVisible bool   `json:"isVisible,omitempty"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// Participant is one attendee of a CalendarEvent (JSCalendar, RFC 8984).
type Participant struct {
	Name                string          `json:"name,omitempty"`
	Email               string          `json:"email,omitempty"`
	Kind                string          `json:"kind,omitempty"`
	Roles               map[string]bool `json:"roles,omitempty"`
	ParticipationStatus string          `json:"participationStatus,omitempty"`
}

// CalendarEvent is a JMAP CalendarEvent carrying a JSCalendar event.
type CalendarEvent struct {
	ID              string                 `json:"id"`
	CalendarIDs     map[string]bool        `json:"calendarIds,omitempty"`
	Title           string                 `json:"title,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Locations       map[string]Location    `json:"locations,omitempty"`
	Start           string                 `json:"start,omitempty"`
	Duration        string                 `json:"duration,omitempty"`
	TimeZone        string                 `json:"timeZone,omitempty"`
	ShowWithoutTime bool                   `json:"showWithoutTime,omitempty"`
	Status          string                 `json:"status,omitempty"`
	Participants    map[string]Participant `json:"participants,omitempty"`
	Created         string                 `json:"created,omitempty"`
	Updated         string                 `json:"updated,omitempty"`
}

// Location is a JSCalendar event location.
type Location struct {
	Name string `json:"name,omitempty"`
}

// CalendarEventFilter is the CalendarEvent/query filter subset in use.
type CalendarEventFilter struct {
	InCalendars []string `json:"inCalendars,omitempty"`
	After       string   `json:"after,omitempty"`
	Before      string   `json:"before,omitempty"`
	Text        string   `json:"text,omitempty"`
}

// Identity is a JMAP Identity used for EmailSubmission (RFC 8621 section 6).
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}
