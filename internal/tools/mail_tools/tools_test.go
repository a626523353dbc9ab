package mail_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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

func TestAddressListArg(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		want    int
		wantErr bool
	}{
		{
			name: "comma separated string",
			args: map[string]interface{}{"to": "a@example.com, b@example.com"},
			want: 2,
		},
		{
			name: "string slice",
			args: map[string]interface{}{"to": []interface{}{"a@example.com", "Bea <b@example.com>"}},
			want: 2,
		},
		{
			name: "missing key",
			args: map[string]interface{}{},
			want: 0,
		},
		{
			name:    "invalid address",
			args:    map[string]interface{}{"to": "not-an-address"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addresses, err := addressListArg(tt.args, "to")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, addresses, tt.want)
		})
	}
}

func TestBoolArg(t *testing.T) {
	args := map[string]interface{}{
		"flagged": false,
		"bad":     "yes",
	}
	if got := boolArg(args, "flagged", true); got != false {
		t.Errorf("boolArg() = %v, want false", got)
	}
	if got := boolArg(args, "bad", true); got != true {
		t.Errorf("boolArg() on non-bool = %v, want fallback true", got)
	}
	if got := boolArg(args, "missing", true); got != true {
		t.Errorf("boolArg() on missing key = %v, want fallback true", got)
	}
}

func TestRegisterMailTools(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Config{})
	require.NoError(t, err)
	defer sc.Shutdown()

	s := mcpserver.NewMCPServer("test", "0.0.0")
	require.NoError(t, RegisterMailTools(s, sc, false))

	readOnly := mcpserver.NewMCPServer("test", "0.0.0")
	require.NoError(t, RegisterMailTools(readOnly, sc, true))
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

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest, *server.ServerContext) (*mcp.CallToolResult, error)
		args    map[string]interface{}
		want    string
	}{
		{
			name:    "get email without id",
			handler: handleGetEmail,
			args:    map[string]interface{}{},
			want:    "emailId is required",
		},
		{
			name:    "get thread without id",
			handler: handleGetThread,
			args:    map[string]interface{}{},
			want:    "threadId is required",
		},
		{
			name:    "get attachments without id",
			handler: handleGetAttachmentList,
			args:    map[string]interface{}{},
			want:    "emailId is required",
		},
		{
			name:    "archive without id",
			handler: handleArchiveEmail,
			args:    map[string]interface{}{},
			want:    "emailId is required",
		},
		{
			name:    "move without target mailbox",
			handler: handleMoveEmail,
			args:    map[string]interface{}{"emailId": "email-1"},
			want:    "mailboxId",
		},
		{
			name:    "update draft without fields",
			handler: handleUpdateDraft,
			args:    map[string]interface{}{"draftId": "draft-1"},
			want:    "nothing to update",
		},
		{
			name:    "reply without body",
			handler: handleReplyToEmail,
			args:    map[string]interface{}{"emailId": "email-1"},
			want:    "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(ctx, requestWithArgs(tt.args), sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

// fakeMailBackend is a minimal JMAP mail server covering the methods the
// tools exercise.
type fakeMailBackend struct {
	srv         *httptest.Server
	emails      map[string]*jmap.Email
	submissions int
	nextID      int
}

func newFakeMailBackend(t *testing.T) *fakeMailBackend {
	t.Helper()
	f := &fakeMailBackend{
		emails: map[string]*jmap.Email{
			"email-1": {
				ID:       "email-1",
				ThreadID: "thread-1",
				MailboxIDs: map[string]bool{
					"mb-inbox": true,
				},
				From:    []jmap.EmailAddress{{Name: "Ada", Email: "ada@example.com"}},
				To:      []jmap.EmailAddress{{Email: testOwner}},
				Subject: "Build report",
				Preview: "The nightly build",
				BodyValues: map[string]jmap.EmailBodyValue{
					"text": {Value: "The nightly build finished."},
				},
				TextBody: []jmap.EmailBodyPart{{PartID: "text", Type: "text/plain"}},
				Attachments: []jmap.EmailBodyPart{
					{BlobID: "blob-1", Name: "report.pdf", Type: "application/pdf", Size: 2048},
				},
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jmap", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jmap.Session{
			Username: testOwner,
			APIURL:   f.srv.URL + "/api",
			PrimaryAccounts: map[string]string{
				jmap.CapabilityMail:       "acct-1",
				jmap.CapabilitySubmission: "acct-1",
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

func (f *fakeMailBackend) dispatch(t *testing.T, call jmap.Invocation) any {
	switch call.Name {
	case "Mailbox/get":
		return map[string]any{
			"list": []*jmap.Mailbox{
				{ID: "mb-inbox", Name: "Inbox", Role: jmap.RoleInbox, TotalEmails: 1, UnreadEmails: 1},
				{ID: "mb-archive", Name: "Archive", Role: jmap.RoleArchive},
				{ID: "mb-trash", Name: "Trash", Role: jmap.RoleTrash},
				{ID: "mb-drafts", Name: "Drafts", Role: jmap.RoleDrafts},
				{ID: "mb-sent", Name: "Sent", Role: jmap.RoleSent},
			},
		}
	case "Email/query":
		ids := make([]string, 0, len(f.emails))
		for id := range f.emails {
			ids = append(ids, id)
		}
		return map[string]any{"ids": ids}
	case "Email/get":
		var args struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil {
			t.Fatalf("decoding Email/get args: %v", err)
		}
		var list []*jmap.Email
		for _, id := range args.IDs {
			if email, ok := f.emails[id]; ok {
				list = append(list, email)
			}
		}
		return map[string]any{"list": list}
	case "Thread/get":
		return map[string]any{
			"list": []*jmap.Thread{{ID: "thread-1", EmailIDs: []string{"email-1"}}},
		}
	case "Email/set":
		var args struct {
			Create  map[string]*jmap.EmailCreate `json:"create"`
			Update  map[string]map[string]any    `json:"update"`
			Destroy []string                     `json:"destroy"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil {
			t.Fatalf("decoding Email/set args: %v", err)
		}
		result := map[string]any{}
		if len(args.Create) > 0 {
			created := map[string]*jmap.Email{}
			for ref, create := range args.Create {
				f.nextID++
				email := &jmap.Email{
					ID:         fmt.Sprintf("email-new-%d", f.nextID),
					MailboxIDs: create.MailboxIDs,
					Keywords:   create.Keywords,
					From:       create.From,
					To:         create.To,
					Subject:    create.Subject,
					BodyValues: create.BodyValues,
					TextBody:   create.TextBody,
				}
				f.emails[email.ID] = email
				created[ref] = email
			}
			result["created"] = created
		}
		if len(args.Update) > 0 {
			updated := map[string]any{}
			for id, patch := range args.Update {
				email, ok := f.emails[id]
				if !ok {
					continue
				}
				for key, value := range patch {
					switch key {
					case "mailboxIds":
						raw, _ := json.Marshal(value)
						boxes := map[string]bool{}
						json.Unmarshal(raw, &boxes)
						email.MailboxIDs = boxes
					case "keywords/" + jmap.KeywordSeen:
						if email.Keywords == nil {
							email.Keywords = map[string]bool{}
						}
						if value == nil {
							delete(email.Keywords, jmap.KeywordSeen)
						} else {
							email.Keywords[jmap.KeywordSeen] = true
						}
					}
				}
				updated[id] = nil
			}
			result["updated"] = updated
		}
		if len(args.Destroy) > 0 {
			for _, id := range args.Destroy {
				delete(f.emails, id)
			}
			result["destroyed"] = args.Destroy
		}
		return result
	case "Identity/get":
		return map[string]any{
			"list": []*jmap.Identity{{ID: "ident-1", Email: testOwner}},
		}
	case "EmailSubmission/set":
		f.submissions++
		return map[string]any{
			"created": map[string]any{"submission": map[string]any{"id": "sub-1"}},
		}
	default:
		t.Fatalf("unexpected JMAP method %s", call.Name)
		return nil
	}
}

func newMailTestContext(t *testing.T) (context.Context, *server.ServerContext, *fakeMailBackend) {
	t.Helper()
	f := newFakeMailBackend(t)

	sc, err := server.NewServerContext(context.Background(), server.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { sc.Shutdown() })

	client, err := jmap.NewClient(context.Background(), f.srv.URL+"/.well-known/jmap", "test-token")
	require.NoError(t, err)
	sc.SetClientForAccount(testOwner, client)

	return auth.WithIdentity(context.Background(), testOwner), sc, f
}

func TestHandleListMailboxes(t *testing.T) {
	ctx, sc, _ := newMailTestContext(t)

	result, err := handleListMailboxes(ctx, requestWithArgs(nil), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "mb-inbox")
	assert.Contains(t, text, "Archive")
}

func TestHandleListEmails(t *testing.T) {
	ctx, sc, _ := newMailTestContext(t)

	result, err := handleListEmails(ctx, requestWithArgs(map[string]interface{}{
		"mailboxId": "mb-inbox",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Build report")
}

func TestHandleGetEmailMarksExternalContent(t *testing.T) {
	ctx, sc, _ := newMailTestContext(t)

	result, err := handleGetEmail(ctx, requestWithArgs(map[string]interface{}{
		"emailId": "email-1",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	token := sc.Marks().Token()
	assert.Contains(t, text, "<<external-data-"+token+">>Build report<<end-external-data-"+token+">>")
	assert.Contains(t, text, "email-1", "ids stay unmarked")
}

func TestHandleGetThreadMarksInnerEmails(t *testing.T) {
	ctx, sc, _ := newMailTestContext(t)

	result, err := handleGetThread(ctx, requestWithArgs(map[string]interface{}{
		"threadId": "thread-1",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	// The thread wraps its messages in an inner list; marking must reach
	// the subjects, display names and body text of every message.
	text := resultText(t, result)
	token := sc.Marks().Token()
	assert.Contains(t, text, "<<external-data-"+token+">>Build report<<end-external-data-"+token+">>")
	assert.Contains(t, text, "<<external-data-"+token+">>Ada<<end-external-data-"+token+">>")
	assert.Contains(t, text, "<<external-data-"+token+">>The nightly build finished.<<end-external-data-"+token+">>")
	assert.Contains(t, text, `"threadId": "thread-1"`, "thread id stays unmarked")
}

func TestHandleGetAttachmentList(t *testing.T) {
	ctx, sc, _ := newMailTestContext(t)

	result, err := handleGetAttachmentList(ctx, requestWithArgs(map[string]interface{}{
		"emailId": "email-1",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	// The filename is sender-chosen text and comes back marked.
	text := resultText(t, result)
	token := sc.Marks().Token()
	assert.Contains(t, text, "<<external-data-"+token+">>report.pdf<<end-external-data-"+token+">>")
	assert.Contains(t, text, "application/pdf", "content type stays unmarked")
}

func TestHandleSetKeyword(t *testing.T) {
	ctx, sc, f := newMailTestContext(t)

	result, err := handleSetKeyword(ctx, requestWithArgs(map[string]interface{}{
		"emailId": "email-1",
	}), sc, jmap.KeywordSeen, true, "read")
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.True(t, f.emails["email-1"].Keywords[jmap.KeywordSeen])
}

func TestHandleArchiveEmail(t *testing.T) {
	ctx, sc, f := newMailTestContext(t)

	result, err := handleArchiveEmail(ctx, requestWithArgs(map[string]interface{}{
		"emailId": "email-1",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.True(t, f.emails["email-1"].MailboxIDs["mb-archive"])
	assert.False(t, f.emails["email-1"].MailboxIDs["mb-inbox"])
}

func TestHandleArchiveEmailBatch(t *testing.T) {
	ctx, sc, f := newMailTestContext(t)
	f.emails["email-2"] = &jmap.Email{
		ID:         "email-2",
		ThreadID:   "thread-2",
		MailboxIDs: map[string]bool{"mb-inbox": true},
		Subject:    "Second report",
	}

	result, err := handleArchiveEmail(ctx, requestWithArgs(map[string]interface{}{
		"emailId": []interface{}{"email-1", "email-2"},
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, `"total": 2`)
	assert.Contains(t, text, `"successful": 2`)
	assert.True(t, f.emails["email-1"].MailboxIDs["mb-archive"])
	assert.True(t, f.emails["email-2"].MailboxIDs["mb-archive"])
}

func TestHandleDeleteEmailMovesToTrash(t *testing.T) {
	ctx, sc, f := newMailTestContext(t)

	result, err := handleDeleteEmail(ctx, requestWithArgs(map[string]interface{}{
		"emailId": "email-1",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "trash")

	require.Contains(t, f.emails, "email-1", "delete must not destroy")
	assert.True(t, f.emails["email-1"].MailboxIDs["mb-trash"])
}

func TestHandleCreateDraft(t *testing.T) {
	ctx, sc, f := newMailTestContext(t)

	result, err := handleCreateDraft(ctx, requestWithArgs(map[string]interface{}{
		"to":      "ada@example.com",
		"subject": "Re: Build report",
		"body":    "Looks good.",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var draft *jmap.Email
	for id, email := range f.emails {
		if id != "email-1" {
			draft = email
		}
	}
	require.NotNil(t, draft)
	assert.True(t, draft.MailboxIDs["mb-drafts"])
	assert.True(t, draft.Keywords[jmap.KeywordDraft])
	assert.Equal(t, "Re: Build report", draft.Subject)
	assert.Equal(t, 0, f.submissions)
}

func TestHandleSendEmail(t *testing.T) {
	ctx, sc, f := newMailTestContext(t)

	result, err := handleSendEmail(ctx, requestWithArgs(map[string]interface{}{
		"to":      "ada@example.com",
		"subject": "Ping",
		"body":    "Hello.",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, 1, f.submissions)
}

func TestHandleReplyToEmailAsDraft(t *testing.T) {
	ctx, sc, f := newMailTestContext(t)

	result, err := handleReplyToEmail(ctx, requestWithArgs(map[string]interface{}{
		"emailId": "email-1",
		"body":    "Thanks for the report.",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, 0, f.submissions, "reply without sendImmediately stays a draft")

	var draft *jmap.Email
	for id, email := range f.emails {
		if id != "email-1" {
			draft = email
		}
	}
	require.NotNil(t, draft)
	assert.Equal(t, "Re: Build report", draft.Subject)
	require.NotEmpty(t, draft.To)
	assert.Equal(t, "ada@example.com", draft.To[0].Email)
}
