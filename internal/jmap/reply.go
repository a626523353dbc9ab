package jmap

import (
	"fmt"
	"net/mail"
	"strings"
)

// ParseAddress parses "Name <user@host>" or a bare address.
func ParseAddress(input string) (EmailAddress, error) {
	parsed, err := mail.ParseAddress(input)
	if err != nil {
		return EmailAddress{}, fmt.Errorf("invalid email address %q: %w", input, err)
	}
	return EmailAddress{Name: parsed.Name, Email: parsed.Address}, nil
}

// ParseAddressList parses a list of address strings.
func ParseAddressList(inputs []string) ([]EmailAddress, error) {
	var addresses []EmailAddress
	for _, input := range inputs {
		address, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// NewMessage builds a plain-text outbound email.
func NewMessage(from EmailAddress, to, cc, bcc []EmailAddress, subject, body string) *EmailCreate {
	return &EmailCreate{
		From:       []EmailAddress{from},
		To:         to,
		Cc:         cc,
		Bcc:        bcc,
		Subject:    subject,
		TextBody:   []EmailBodyPart{{PartID: "text", Type: "text/plain"}},
		BodyValues: map[string]EmailBodyValue{"text": {Value: body}},
	}
}

// BuildReply builds a reply to an email: recipients from the reply-to or
// from headers (plus the other recipients when replyAll is set, minus the
// sender themselves), the subject prefixed once, threading headers chained,
// and the original quoted under the new body.
func BuildReply(original *Email, from EmailAddress, body string, replyAll bool) *EmailCreate {
	recipients := original.ReplyTo
	if len(recipients) == 0 {
		recipients = original.From
	}

	seen := map[string]bool{strings.ToLower(from.Email): true}
	to := dedupeAddresses(recipients, seen)
	var cc []EmailAddress
	if replyAll {
		to = append(to, dedupeAddresses(original.To, seen)...)
		cc = dedupeAddresses(original.Cc, seen)
	}

	references := append(append([]string{}, original.References...), original.MessageID...)

	reply := NewMessage(from, to, cc, nil, ReplySubject(original.Subject), body+"\n\n"+QuoteOriginal(original))
	reply.InReplyTo = original.MessageID
	reply.References = references
	return reply
}

// ReplySubject prefixes a subject with "Re: " unless it already carries one.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

// QuoteOriginal renders the original message as a quoted block.
func QuoteOriginal(original *Email) string {
	author := ""
	if len(original.From) > 0 {
		author = original.From[0].Name
		if author == "" {
			author = original.From[0].Email
		}
	}
	when := original.SentAt
	if when == "" {
		when = original.ReceivedAt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "On %s, %s wrote:\n", when, author)
	for _, line := range strings.Split(PlainTextBody(original), "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// PlainTextBody returns the email body as readable text, preferring plain
// text parts and falling back to stripped HTML.
func PlainTextBody(email *Email) string {
	var parts []string
	for _, part := range email.TextBody {
		if value, ok := email.BodyValues[part.PartID]; ok && value.Value != "" {
			parts = append(parts, value.Value)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	for _, part := range email.HTMLBody {
		if value, ok := email.BodyValues[part.PartID]; ok && value.Value != "" {
			parts = append(parts, HTMLToText(value.Value))
		}
	}
	return strings.Join(parts, "\n")
}

func dedupeAddresses(addresses []EmailAddress, seen map[string]bool) []EmailAddress {
	var out []EmailAddress
	for _, address := range addresses {
		key := strings.ToLower(address.Email)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, address)
	}
	return out
}
