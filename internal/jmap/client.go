package jmap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Client talks to one JMAP account. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	sessionURL string
	token      string

	mu        sync.Mutex
	session   *Session
	accountID string
	roleIDs   map[string]string // mailbox role -> id
}

// Account returns the authenticated account's email address.
func (c *Client) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Username
}

// NewClient creates a client for the account a bearer token belongs to by
// fetching the session resource.
func NewClient(ctx context.Context, sessionURL, accessToken string) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		sessionURL: sessionURL,
		token:      accessToken,
		roleIDs:    make(map[string]string),
	}
	if err := c.refreshSession(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// SetHTTPClient replaces the HTTP client, for tests and custom transports.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpClient = httpClient
}

func (c *Client) refreshSession(ctx context.Context) error {
	session, err := fetchSession(ctx, c.httpClient, c.sessionURL, c.token)
	if err != nil {
		return err
	}

	accountID, ok := session.PrimaryAccounts[CapabilityMail]
	if !ok {
		return fmt.Errorf("session has no primary mail account")
	}

	c.mu.Lock()
	c.session = session
	c.accountID = accountID
	c.mu.Unlock()
	return nil
}

func fetchSession(ctx context.Context, httpClient *http.Client, sessionURL, accessToken string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sessionURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session request failed with status %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.APIURL == "" {
		return nil, fmt.Errorf("session has no apiUrl")
	}
	return &session, nil
}

// call issues a single method call and returns the arguments of its
// response. A method-level "error" response is converted to a Go error.
func (c *Client) call(ctx context.Context, using []string, method string, args any) (json.RawMessage, error) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s arguments: %w", method, err)
	}

	reqBody, err := json.Marshal(Request{
		Using:       using,
		MethodCalls: []Invocation{{Name: method, Args: rawArgs, CallID: "0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.mu.Lock()
	apiURL := c.session.APIURL
	httpClient := c.httpClient
	c.mu.Unlock()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s request failed with status %d", method, resp.StatusCode)
	}

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if len(response.MethodResponses) == 0 {
		return nil, fmt.Errorf("%s returned no method responses", method)
	}

	inv := response.MethodResponses[0]
	if inv.Name == "error" {
		var methodErr MethodError
		if err := json.Unmarshal(inv.Args, &methodErr); err != nil {
			return nil, fmt.Errorf("%s failed with undecodable error", method)
		}
		if methodErr.Description != "" {
			return nil, fmt.Errorf("%s failed: %s (%s)", method, methodErr.Type, methodErr.Description)
		}
		return nil, fmt.Errorf("%s failed: %s", method, methodErr.Type)
	}
	return inv.Args, nil
}

type getResponseEnvelope struct {
	List     json.RawMessage `json:"list"`
	NotFound []string        `json:"notFound"`
	State    string          `json:"state"`
}

type queryResponseEnvelope struct {
	IDs      []string `json:"ids"`
	Position int      `json:"position"`
	Total    uint     `json:"total"`
}

type setResponseEnvelope struct {
	Created      map[string]json.RawMessage `json:"created"`
	Updated      map[string]json.RawMessage `json:"updated"`
	Destroyed    []string                   `json:"destroyed"`
	NotCreated   map[string]SetError        `json:"notCreated"`
	NotUpdated   map[string]SetError        `json:"notUpdated"`
	NotDestroyed map[string]SetError        `json:"notDestroyed"`
}

func setError(verb, id string, errs map[string]SetError) error {
	setErr, ok := errs[id]
	if !ok {
		return fmt.Errorf("%s of %s was silently dropped", verb, id)
	}
	if setErr.Description != "" {
		return fmt.Errorf("%s of %s rejected: %s (%s)", verb, id, setErr.Type, setErr.Description)
	}
	return fmt.Errorf("%s of %s rejected: %s", verb, id, setErr.Type)
}

// Mailboxes returns all mailboxes of the account.
func (c *Client) Mailboxes(ctx context.Context) ([]*Mailbox, error) {
	args, err := c.call(ctx, []string{CapabilityCore, CapabilityMail}, "Mailbox/get", map[string]any{
		"accountId": c.accountID,
		"ids":       nil,
	})
	if err != nil {
		return nil, err
	}

	var envelope getResponseEnvelope
	if err := json.Unmarshal(args, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode Mailbox/get response: %w", err)
	}
	var mailboxes []*Mailbox
	if err := json.Unmarshal(envelope.List, &mailboxes); err != nil {
		return nil, fmt.Errorf("failed to decode mailbox list: %w", err)
	}
	return mailboxes, nil
}

// MailboxIDByRole resolves a mailbox id by its role (inbox, archive, trash,
// drafts, sent). Resolutions are cached for the lifetime of the client.
func (c *Client) MailboxIDByRole(ctx context.Context, role string) (string, error) {
	c.mu.Lock()
	if id, ok := c.roleIDs[role]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	mailboxes, err := c.Mailboxes(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, mailbox := range mailboxes {
		if mailbox.Role != "" {
			c.roleIDs[mailbox.Role] = mailbox.ID
		}
	}
	id, ok := c.roleIDs[role]
	if !ok {
		return "", fmt.Errorf("account has no mailbox with role %q", role)
	}
	return id, nil
}

// Verifier validates bearer tokens against the JMAP session endpoint. It
// implements the auth.SessionVerifier interface.
type Verifier struct {
	SessionURL string
	HTTPClient *http.Client
}

// VerifyToken checks a token by fetching the session resource and returns
// the account's email address.
func (v *Verifier) VerifyToken(ctx context.Context, accessToken string) (string, error) {
	httpClient := v.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	session, err := fetchSession(ctx, httpClient, v.SessionURL, accessToken)
	if err != nil {
		return "", err
	}
	if session.Username == "" {
		return "", fmt.Errorf("session names no account")
	}
	return session.Username, nil
}
