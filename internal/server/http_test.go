package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petrel-mail/petrel/internal/actionurl"
	"github.com/petrel-mail/petrel/internal/jmap"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{
			name:    "valid HTTPS URL",
			baseURL: "https://mcp.example.com",
			wantErr: false,
		},
		{
			name:    "valid HTTP localhost",
			baseURL: "http://localhost:8080",
			wantErr: false,
		},
		{
			name:    "valid HTTP 127.0.0.1",
			baseURL: "http://127.0.0.1:8080",
			wantErr: false,
		},
		{
			name:    "valid HTTP ::1 (IPv6 loopback)",
			baseURL: "http://[::1]:8080",
			wantErr: false,
		},
		{
			name:    "invalid HTTP non-localhost",
			baseURL: "http://mcp.example.com",
			wantErr: true,
		},
		{
			name:    "invalid HTTP with localhost substring",
			baseURL: "http://localhost.example.com",
			wantErr: true,
		},
		{
			name:    "empty URL",
			baseURL: "",
			wantErr: true,
		},
		{
			name:    "invalid scheme",
			baseURL: "ftp://example.com",
			wantErr: true,
		},
		{
			name:    "HTTPS with port",
			baseURL: "https://mcp.example.com:8443",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPSRequirement() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)

		rw.WriteHeader(http.StatusNotFound)

		if rw.statusCode != http.StatusNotFound {
			t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusNotFound)
		}
	})

	t.Run("defaults to 200", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)

		if rw.statusCode != http.StatusOK {
			t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusOK)
		}
	})
}

func TestInstrumentationMiddleware_NoMetrics(t *testing.T) {
	server := &HTTPServer{} // no server context, no metrics
	called := false
	next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	})

	handler := server.instrumentationMiddleware(next)
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected next handler to be called")
	}
}

func newTestHTTPServer(t *testing.T, config HTTPConfig) (*HTTPServer, *ServerContext) {
	t.Helper()

	sc, err := NewServerContext(context.Background(), Config{
		SessionURL: "http://localhost/.well-known/jmap",
	})
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if len(config.AuthorizationServers) == 0 {
		config.AuthorizationServers = []string{"https://mail.example.com"}
	}

	srv, err := NewHTTPServer(mcpserver.NewMCPServer("test", "0.0.0"), sc, config)
	if err != nil {
		t.Fatalf("NewHTTPServer() error = %v", err)
	}
	return srv, sc
}

func TestHTTPServer_ProtectedResourceMetadata(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPConfig{})

	req := httptest.NewRequest("GET", "/.well-known/oauth-protected-resource", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var metadata struct {
		Resource             string   `json:"resource"`
		AuthorizationServers []string `json:"authorization_servers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &metadata); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if metadata.Resource != "http://localhost:8080" {
		t.Errorf("resource = %q", metadata.Resource)
	}
	if len(metadata.AuthorizationServers) != 1 || metadata.AuthorizationServers[0] != "https://mail.example.com" {
		t.Errorf("authorization_servers = %v", metadata.AuthorizationServers)
	}
}

func TestHTTPServer_MCPRequiresToken(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPConfig{})

	req := httptest.NewRequest("POST", "/mcp", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, "oauth-protected-resource") {
		t.Errorf("WWW-Authenticate = %q, want pointer to resource metadata", got)
	}
}

func TestHTTPServer_HealthEndpoints(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPConfig{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

// fakeJMAPBackend serves a minimal session plus the Mailbox/get and
// Email/set responses the archive action needs.
func fakeJMAPBackend(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	updates := 0

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/.well-known/jmap", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"username": "owner@example.com",
			"apiUrl":   srv.URL + "/api",
			"primaryAccounts": map[string]string{
				jmap.CapabilityMail: "acct-1",
			},
			"accounts": map[string]any{"acct-1": map[string]any{"name": "owner@example.com"}},
		})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MethodCalls []json.RawMessage `json:"methodCalls"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad JMAP request: %v", err)
		}
		var call []json.RawMessage
		if err := json.Unmarshal(req.MethodCalls[0], &call); err != nil {
			t.Fatalf("bad invocation: %v", err)
		}
		var method string
		_ = json.Unmarshal(call[0], &method)

		var args any
		switch method {
		case "Mailbox/get":
			args = map[string]any{
				"list": []any{
					map[string]any{"id": "mb-archive", "name": "Archive", "role": "archive"},
				},
			}
		case "Email/set":
			updates++
			args = map[string]any{"updated": map[string]any{"email-1": nil}}
		default:
			t.Fatalf("unexpected JMAP method %s", method)
		}
		payload, _ := json.Marshal(args)
		resp := map[string]any{
			"methodResponses": []any{[]any{method, json.RawMessage(payload), "0"}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &updates
}

func TestHTTPServer_ActionLink(t *testing.T) {
	backend, updates := fakeJMAPBackend(t)

	key := []byte("test-signing-key")
	srv, sc := newTestHTTPServer(t, HTTPConfig{
		ActionKey:     key,
		ActionAccount: "owner@example.com",
	})

	client, err := jmap.NewClient(context.Background(), backend.URL+"/.well-known/jmap", "token")
	if err != nil {
		t.Fatalf("jmap.NewClient() error = %v", err)
	}
	sc.SetClientForAccount("owner@example.com", client)

	issuer := actionurl.NewIssuer(key, sc.Store(), "http://localhost:8080")
	link, err := issuer.Issue(context.Background(), actionurl.ActionArchive, "email-1", "mb-inbox")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	path := strings.TrimPrefix(link, "http://localhost:8080")
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if *updates != 1 {
		t.Errorf("Email/set calls = %d, want 1", *updates)
	}

	// Second use of the same link must be rejected.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	if rec.Code != http.StatusGone {
		t.Errorf("replay status = %d, want %d", rec.Code, http.StatusGone)
	}
	if *updates != 1 {
		t.Errorf("Email/set calls after replay = %d, want 1", *updates)
	}
}

func TestHTTPServer_ActionLinkRejectsTamper(t *testing.T) {
	srv, sc := newTestHTTPServer(t, HTTPConfig{
		ActionKey:     []byte("test-signing-key"),
		ActionAccount: "owner@example.com",
	})

	issuer := actionurl.NewIssuer([]byte("test-signing-key"), sc.Store(), "http://localhost:8080")
	link, err := issuer.Issue(context.Background(), actionurl.ActionArchive, "email-1", "mb-inbox")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// Swap the action on a validly signed link.
	tampered := strings.Replace(strings.TrimPrefix(link, "http://localhost:8080"), "op=archive", "op=delete", 1)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", tampered, nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("tampered status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// Expired links report as gone.
	expired := fmt.Sprintf("/action?op=archive&id=email-1&aux=mb&exp=%d&sig=%s",
		time.Now().Add(-time.Hour).Unix(),
		actionurl.Sign(actionurl.ActionArchive, "email-1", "mb", time.Now().Add(-time.Hour).Unix(), []byte("test-signing-key")))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", expired, nil))
	if rec.Code != http.StatusGone {
		t.Errorf("expired status = %d, want %d", rec.Code, http.StatusGone)
	}
}
