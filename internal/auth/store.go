package auth

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/petrel-mail/petrel/internal/logging"
)

// Store caches validated bearer tokens and their identities in memory.
// Validation results are cached so every MCP request does not cost a
// round-trip to the provider's session endpoint.
type Store struct {
	mu         sync.RWMutex
	tokens     map[string]*oauth2.Token // identity (email) -> provider token
	identities map[string]identityEntry // access token -> validated identity
	cacheTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

type identityEntry struct {
	email     string
	expiresAt time.Time
}

// DefaultIdentityCacheTTL bounds how long a validated token's identity is
// trusted without re-checking the provider.
const DefaultIdentityCacheTTL = 5 * time.Minute

// NewStore creates an empty token store.
func NewStore() *Store {
	return &Store{
		tokens:     make(map[string]*oauth2.Token),
		identities: make(map[string]identityEntry),
		cacheTTL:   DefaultIdentityCacheTTL,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// SetLogger sets a custom logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SaveToken stores a provider token for an identity.
func (s *Store) SaveToken(identity string, token *oauth2.Token) error {
	if identity == "" {
		return fmt.Errorf("identity cannot be empty")
	}
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[identity] = token
	s.logger.Debug("saved provider token", logging.UserHash(identity))
	return nil
}

// Token returns the provider token for an identity.
func (s *Store) Token(identity string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[identity]
	if !ok {
		return nil, fmt.Errorf("no token for identity")
	}
	if !token.Expiry.IsZero() && token.Expiry.Before(s.now()) {
		return nil, fmt.Errorf("token expired")
	}
	return token, nil
}

// HasToken reports whether a live token exists for an identity.
func (s *Store) HasToken(identity string) bool {
	_, err := s.Token(identity)
	return err == nil
}

// CacheIdentity records the identity a bearer token validated to.
func (s *Store) CacheIdentity(accessToken, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[accessToken] = identityEntry{
		email:     email,
		expiresAt: s.now().Add(s.cacheTTL),
	}
}

// CachedIdentity returns the previously validated identity for a bearer
// token, if the cache entry is still live.
func (s *Store) CachedIdentity(accessToken string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.identities[accessToken]
	if !ok || s.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.email, true
}

// DeleteToken removes an identity's token and any cached validations for it.
func (s *Store) DeleteToken(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, identity)
	for accessToken, entry := range s.identities {
		if entry.email == identity {
			delete(s.identities, accessToken)
		}
	}
}
