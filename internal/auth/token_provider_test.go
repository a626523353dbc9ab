package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth/storage/memory"
)

func TestStoreTokenProviderRoundTrip(t *testing.T) {
	store := NewStore()
	provider := NewStoreTokenProvider(store)
	ctx := context.Background()

	assert.False(t, provider.HasTokenForAccount("user@example.com"))

	token := &oauth2.Token{AccessToken: "test-access-token", TokenType: "Bearer"}
	require.NoError(t, provider.SaveToken(ctx, "user@example.com", token))

	assert.True(t, provider.HasTokenForAccount("user@example.com"))
	got, err := provider.GetTokenForAccount(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", got.AccessToken)
}

func TestLibraryTokenProvider(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	provider := NewLibraryTokenProvider(store)
	ctx := context.Background()

	assert.False(t, provider.HasTokenForAccount("user@example.com"))

	token := &oauth2.Token{
		AccessToken: "test-access-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	require.NoError(t, provider.SaveToken(ctx, "user@example.com", token))

	assert.True(t, provider.HasTokenForAccount("user@example.com"))
	got, err := provider.GetTokenForAccount(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", got.AccessToken)

	_, err = provider.GetTokenForAccount(ctx, "nobody@example.com")
	assert.Error(t, err)
}
