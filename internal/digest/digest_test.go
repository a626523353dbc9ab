package digest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-mail/petrel/internal/actionurl"
	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/storage"
)

func newDigestBackend(t *testing.T, emails []*jmap.Email) *jmap.Client {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jmap", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jmap.Session{
			Username: "owner@example.com",
			APIURL:   srv.URL + "/api",
			PrimaryAccounts: map[string]string{
				jmap.CapabilityMail: "acct-1",
			},
		})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		var req jmap.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var responses []jmap.Invocation
		for _, call := range req.MethodCalls {
			var result any
			switch call.Name {
			case "Mailbox/get":
				result = map[string]any{
					"list": []*jmap.Mailbox{{ID: "mb-inbox", Name: "Inbox", Role: jmap.RoleInbox}},
				}
			case "Email/query":
				ids := make([]string, 0, len(emails))
				for _, email := range emails {
					ids = append(ids, email.ID)
				}
				result = map[string]any{"ids": ids}
			case "Email/get":
				result = map[string]any{"list": emails}
			default:
				t.Fatalf("unexpected JMAP method %s", call.Name)
			}
			args, _ := json.Marshal(result)
			responses = append(responses, jmap.Invocation{Name: call.Name, Args: args, CallID: call.CallID})
		}
		json.NewEncoder(w).Encode(jmap.Response{MethodResponses: responses})
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := jmap.NewClient(context.Background(), srv.URL+"/.well-known/jmap", "test-token")
	require.NoError(t, err)
	return client
}

func TestGenerate(t *testing.T) {
	client := newDigestBackend(t, []*jmap.Email{
		{
			ID:         "email-1",
			From:       []jmap.EmailAddress{{Name: "Ada", Email: "ada@example.com"}},
			Subject:    "Build report",
			Preview:    "The nightly build finished.",
			ReceivedAt: "2026-08-29T10:00:00Z",
		},
		{
			ID:   "email-2",
			From: []jmap.EmailAddress{{Email: "noreply@example.com"}},
		},
	})

	store := storage.NewMemoryStore()
	issuer := actionurl.NewIssuer([]byte("digest-test-key"), store, "https://mail.example.com")

	page, err := NewGenerator(client, issuer).Generate(context.Background())
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "owner@example.com")
	assert.Contains(t, html, "Build report")
	assert.Contains(t, html, "Ada")
	assert.Contains(t, html, "(no subject)")
	assert.Contains(t, html, "noreply@example.com")

	assert.Contains(t, html, "https://mail.example.com/action?")
	assert.Contains(t, html, "op=archive")
	assert.Contains(t, html, "op=delete")
	assert.Equal(t, 2, strings.Count(html, "op=archive"), "one archive link per message")
}

func TestGenerateEscapesContent(t *testing.T) {
	client := newDigestBackend(t, []*jmap.Email{
		{
			ID:      "email-1",
			From:    []jmap.EmailAddress{{Name: "<script>alert(1)</script>", Email: "evil@example.com"}},
			Subject: `<img src=x onerror="steal()">`,
		},
	})

	page, err := NewGenerator(client, nil).Generate(context.Background())
	require.NoError(t, err)
	html := string(page)

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.NotContains(t, html, `<img src=x`)
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestGenerateEmptyInbox(t *testing.T) {
	client := newDigestBackend(t, nil)

	page, err := NewGenerator(client, nil, WithLimit(5)).Generate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(page), "Inbox zero")
}
