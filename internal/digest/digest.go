// Package digest renders an HTML inbox digest. Each listed message carries
// archive and delete links backed by single-use signed action URLs, so the
// page works from any mail client or browser without an OAuth session.
package digest

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/petrel-mail/petrel/internal/actionurl"
	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/logging"
)

// DefaultLimit is how many inbox messages a digest covers.
const DefaultLimit = 25

// Entry is one message row in the rendered digest.
type Entry struct {
	ID         string
	From       string
	Subject    string
	Preview    string
	ReceivedAt string
	ArchiveURL string
	DeleteURL  string
}

// Page is the data handed to the digest template.
type Page struct {
	Account     string
	GeneratedAt string
	Entries     []Entry
}

// Generator builds digest pages for one account.
type Generator struct {
	client *jmap.Client
	issuer *actionurl.Issuer
	logger *slog.Logger
	limit  int
	now    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithLimit caps how many messages the digest covers.
func WithLimit(limit int) Option {
	return func(g *Generator) {
		if limit > 0 {
			g.limit = limit
		}
	}
}

// NewGenerator creates a Generator. The issuer may be nil, in which case
// the digest renders without action links.
func NewGenerator(client *jmap.Client, issuer *actionurl.Issuer, opts ...Option) *Generator {
	g := &Generator{
		client: client,
		issuer: issuer,
		logger: slog.Default(),
		limit:  DefaultLimit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders the digest page for the account's inbox.
func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	inboxID, err := g.client.MailboxIDByRole(ctx, jmap.RoleInbox)
	if err != nil {
		return nil, fmt.Errorf("failed to locate inbox: %w", err)
	}

	emails, err := g.client.ListEmails(ctx, &jmap.EmailFilter{InMailbox: inboxID}, 0, g.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	page := Page{
		Account:     g.client.Account(),
		GeneratedAt: g.now().UTC().Format(time.RFC1123),
	}
	for _, email := range emails {
		entry := Entry{
			ID:         email.ID,
			From:       formatSender(email.From),
			Subject:    email.Subject,
			Preview:    email.Preview,
			ReceivedAt: formatReceived(email.ReceivedAt),
		}
		if entry.Subject == "" {
			entry.Subject = "(no subject)"
		}

		if g.issuer != nil {
			archiveURL, err := g.issuer.Issue(ctx, actionurl.ActionArchive, email.ID, inboxID)
			if err != nil {
				g.logger.Warn("skipping archive link", logging.Err(err), slog.String("email_id", email.ID))
			} else {
				entry.ArchiveURL = archiveURL
			}
			deleteURL, err := g.issuer.Issue(ctx, actionurl.ActionDelete, email.ID, inboxID)
			if err != nil {
				g.logger.Warn("skipping delete link", logging.Err(err), slog.String("email_id", email.ID))
			} else {
				entry.DeleteURL = deleteURL
			}
		}

		page.Entries = append(page.Entries, entry)
	}

	var out strings.Builder
	if err := pageTemplate.Execute(&out, page); err != nil {
		return nil, fmt.Errorf("failed to render digest: %w", err)
	}
	return []byte(out.String()), nil
}

func formatSender(from []jmap.EmailAddress) string {
	if len(from) == 0 {
		return "(unknown sender)"
	}
	if from[0].Name != "" {
		return from[0].Name
	}
	return from[0].Email
}

func formatReceived(receivedAt string) string {
	parsed, err := time.Parse(time.RFC3339, receivedAt)
	if err != nil {
		return receivedAt
	}
	return parsed.Format("Mon, 2 Jan 15:04")
}

// pageTemplate escapes all message content on render, so a subject line
// cannot inject markup into the page.
var pageTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Inbox digest for {{.Account}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; color: #222; }
.entry { border-bottom: 1px solid #ddd; padding: 0.75rem 0; }
.from { font-weight: bold; }
.meta { color: #777; font-size: 0.85rem; }
.preview { color: #555; margin: 0.25rem 0; }
.actions a { margin-right: 1rem; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>Inbox digest</h1>
<p class="meta">{{.Account}} &middot; generated {{.GeneratedAt}}</p>
{{if not .Entries}}<p>Inbox zero. Nothing to do.</p>{{end}}
{{range .Entries}}<div class="entry">
<div><span class="from">{{.From}}</span> <span class="meta">{{.ReceivedAt}}</span></div>
<div>{{.Subject}}</div>
{{if .Preview}}<p class="preview">{{.Preview}}</p>{{end}}
<div class="actions">{{if .ArchiveURL}}<a href="{{.ArchiveURL}}">Archive</a>{{end}}{{if .DeleteURL}}<a href="{{.DeleteURL}}">Delete</a>{{end}}</div>
</div>
{{end}}</body>
</html>
`))
