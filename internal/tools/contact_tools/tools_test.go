package contact_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-mail/petrel/internal/auth"
	"github.com/petrel-mail/petrel/internal/jmap"
	"github.com/petrel-mail/petrel/internal/server"
)

const testOwner = "owner@example.com"

func TestRegisterContactTools(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Config{})
	require.NoError(t, err)
	defer sc.Shutdown()

	s := mcpserver.NewMCPServer("test", "0.0.0")
	require.NoError(t, RegisterContactTools(s, sc))
}

func requestWithArgs(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandlersRejectMissingArguments(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Config{})
	require.NoError(t, err)
	defer sc.Shutdown()

	ctx := auth.WithIdentity(context.Background(), testOwner)

	result, err := handleGetContact(ctx, requestWithArgs(nil), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "contactId is required")

	result, err = handleSearchContacts(ctx, requestWithArgs(nil), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "query is required")
}

// fakeContactBackend is a minimal JMAP server covering Contact/query and
// Contact/get.
type fakeContactBackend struct {
	srv      *httptest.Server
	contacts map[string]*jmap.Contact
}

func newFakeContactBackend(t *testing.T) *fakeContactBackend {
	t.Helper()
	f := &fakeContactBackend{
		contacts: map[string]*jmap.Contact{
			"contact-1": {
				ID:      "contact-1",
				Name:    "Ada Lovelace",
				Company: "Analytical Engines Ltd",
				Emails:  []jmap.ContactEmail{{Type: "work", Value: "ada@example.com"}},
			},
			"contact-2": {
				ID:   "contact-2",
				Name: "Charles Babbage",
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jmap", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jmap.Session{
			Username: testOwner,
			APIURL:   f.srv.URL + "/api",
			PrimaryAccounts: map[string]string{
				jmap.CapabilityMail:     "acct-1",
				jmap.CapabilityContacts: "acct-1",
			},
		})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		var req jmap.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var responses []jmap.Invocation
		for _, call := range req.MethodCalls {
			result := f.dispatch(t, call)
			args, _ := json.Marshal(result)
			responses = append(responses, jmap.Invocation{Name: call.Name, Args: args, CallID: call.CallID})
		}
		json.NewEncoder(w).Encode(jmap.Response{MethodResponses: responses})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeContactBackend) dispatch(t *testing.T, call jmap.Invocation) any {
	switch call.Name {
	case "Contact/query":
		var args struct {
			Filter *struct {
				Text string `json:"text"`
			} `json:"filter"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil {
			t.Fatalf("decoding Contact/query args: %v", err)
		}
		ids := make([]string, 0, len(f.contacts))
		for id, contact := range f.contacts {
			if args.Filter != nil && args.Filter.Text != "" &&
				!strings.Contains(strings.ToLower(contact.Name), strings.ToLower(args.Filter.Text)) {
				continue
			}
			ids = append(ids, id)
		}
		return map[string]any{"ids": ids}
	case "Contact/get":
		var args struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil {
			t.Fatalf("decoding Contact/get args: %v", err)
		}
		var list []*jmap.Contact
		for _, id := range args.IDs {
			if contact, ok := f.contacts[id]; ok {
				list = append(list, contact)
			}
		}
		return map[string]any{"list": list}
	default:
		t.Fatalf("unexpected JMAP method %s", call.Name)
		return nil
	}
}

func newContactTestContext(t *testing.T) (context.Context, *server.ServerContext) {
	t.Helper()
	f := newFakeContactBackend(t)

	sc, err := server.NewServerContext(context.Background(), server.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { sc.Shutdown() })

	client, err := jmap.NewClient(context.Background(), f.srv.URL+"/.well-known/jmap", "test-token")
	require.NoError(t, err)
	sc.SetClientForAccount(testOwner, client)

	return auth.WithIdentity(context.Background(), testOwner), sc
}

func TestHandleListContacts(t *testing.T) {
	ctx, sc := newContactTestContext(t)

	result, err := handleListContacts(ctx, requestWithArgs(nil), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Ada Lovelace")
	assert.Contains(t, text, "Charles Babbage")
}

func TestHandleGetContactMarksExternalContent(t *testing.T) {
	ctx, sc := newContactTestContext(t)

	result, err := handleGetContact(ctx, requestWithArgs(map[string]interface{}{
		"contactId": "contact-1",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, sc.Marks().StartDelimiter()+"Ada Lovelace"+sc.Marks().EndDelimiter())
	assert.Contains(t, text, "ada@example.com", "addresses stay structural")
}

func TestHandleSearchContacts(t *testing.T) {
	ctx, sc := newContactTestContext(t)

	result, err := handleSearchContacts(ctx, requestWithArgs(map[string]interface{}{
		"query": "ada",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Ada Lovelace")
	assert.NotContains(t, text, "Charles Babbage")
}
