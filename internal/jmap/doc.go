// Package jmap provides a thin JMAP client (RFC 8620, RFC 8621) for the
// mail, contacts and calendar capabilities the tool surface needs.
//
// The client speaks plain JSON over HTTP: it discovers the account through
// the session resource, then issues method calls against the API endpoint
// with a bearer token. It deliberately implements only the subset of the
// protocol the tools use (query/get/set on Email, Mailbox, Thread, Contact,
// Calendar and CalendarEvent, plus EmailSubmission for outbound mail); it is
// not a general JMAP library.
//
// The session resource doubles as token validation: a GET with a bearer
// token either fails or names the authenticated account, which is how the
// OAuth middleware resolves a caller identity.
package jmap
