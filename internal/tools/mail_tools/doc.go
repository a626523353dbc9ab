// Package mail_tools provides MCP (Model Context Protocol) tools for the
// mail side of a JMAP account.
//
// Reading:
//   - list_mailboxes: list folders with message and unread counts
//   - list_emails: list recent messages, optionally from one mailbox
//   - get_email: fetch one message including its body text
//   - get_email_thread: fetch every message in a conversation
//   - search_emails: filter by text, sender, recipient, subject, or date
//   - get_attachment_list: list a message's attachments
//
// Inbox management:
//   - mark_email_read / mark_email_unread / flag_email
//   - archive_email / delete_email / move_email
//
// Composing:
//   - create_draft / update_draft / delete_draft
//   - reply_to_email: reply as draft, or immediately with sendImmediately
//   - send_email: compose and submit for delivery
//
// Deletion through these tools always moves messages to trash; only drafts
// can be destroyed outright. Every result that carries externally authored
// text is datamarked before it reaches the caller.
package mail_tools
