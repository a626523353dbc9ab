package auth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth/storage"
)

// TokenProvider supplies provider tokens per account. The server context
// uses it to build JMAP clients for whichever mailbox a request targets.
type TokenProvider interface {
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)
	HasTokenForAccount(account string) bool
}

// StoreTokenProvider is a TokenProvider backed by the in-memory auth Store.
// This is the path taken when tokens arrive as bearer headers on MCP
// requests and only live as long as the process.
type StoreTokenProvider struct {
	store *Store
}

// NewStoreTokenProvider creates a token provider over an auth Store.
func NewStoreTokenProvider(store *Store) *StoreTokenProvider {
	return &StoreTokenProvider{store: store}
}

func (p *StoreTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	return p.store.Token(account)
}

func (p *StoreTokenProvider) HasTokenForAccount(account string) bool {
	return p.store.HasToken(account)
}

// SaveToken stores a token for an account, used when tokens are refreshed
// or initially acquired.
func (p *StoreTokenProvider) SaveToken(ctx context.Context, account string, token *oauth2.Token) error {
	return p.store.SaveToken(account, token)
}

// LibraryTokenProvider is a TokenProvider bridging an mcp-oauth TokenStore,
// for deployments that run the full authorization server from that library
// and persist tokens in its storage.
type LibraryTokenProvider struct {
	store storage.TokenStore
}

// NewLibraryTokenProvider creates a token provider from an mcp-oauth TokenStore.
func NewLibraryTokenProvider(store storage.TokenStore) *LibraryTokenProvider {
	return &LibraryTokenProvider{store: store}
}

func (p *LibraryTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	return p.store.GetToken(ctx, account)
}

func (p *LibraryTokenProvider) HasTokenForAccount(account string) bool {
	_, err := p.store.GetToken(context.Background(), account)
	return err == nil
}

// SaveToken saves a token for an account.
func (p *LibraryTokenProvider) SaveToken(ctx context.Context, account string, token *oauth2.Token) error {
	return p.store.SaveToken(ctx, account, token)
}
