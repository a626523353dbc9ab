package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/petrel-mail/petrel/internal/instrumentation"
	"github.com/petrel-mail/petrel/internal/logging"
)

// contextKey is the type for context keys
type contextKey string

const (
	// identityContextKey is the key for storing the caller's email in the request context
	identityContextKey contextKey = "auth_identity"

	// tokenContextKey is the key for storing the provider token in the request context
	tokenContextKey contextKey = "provider_token"
)

// ValidateToken is middleware that validates bearer tokens against the mail
// provider's session endpoint and stores the resolved identity in context.
// Validated identities are cached so repeated requests with the same token
// skip the provider round-trip.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource"`,
				h.config.Resource,
			))
			h.recordAuth(r.Context(), instrumentation.OAuthResultFailure)
			h.writeUnauthorizedError(w, "missing_token", "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="Invalid Authorization header format"`,
				h.config.Resource,
			))
			h.recordAuth(r.Context(), instrumentation.OAuthResultFailure)
			h.writeUnauthorizedError(w, "invalid_token", "Invalid Authorization header format")
			return
		}

		accessToken := parts[1]
		token := &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}

		email, ok := h.store.CachedIdentity(accessToken)
		if !ok {
			var err error
			email, err = h.verifier.VerifyToken(r.Context(), accessToken)
			if err != nil {
				errorDesc := actionableErrorMessage(err)
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(
					`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="%s"`,
					h.config.Resource,
					errorDesc,
				))
				h.recordAuth(r.Context(), instrumentation.OAuthResultFailure)
				h.writeUnauthorizedError(w, "invalid_token", errorDesc)
				return
			}
			h.store.CacheIdentity(accessToken, email)
		}
		h.recordAuth(r.Context(), instrumentation.OAuthResultSuccess)

		ctx := context.WithValue(r.Context(), identityContextKey, email)
		ctx = context.WithValue(ctx, tokenContextKey, token)

		// Save the token so tool handlers can reach the provider as this user.
		if err := h.store.SaveToken(email, token); err != nil {
			h.logger.Warn("failed to save provider token", logging.UserHash(email), "error", err)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext retrieves the caller's email from the request context.
func IdentityFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(identityContextKey).(string)
	return email, ok
}

// TokenFromContext retrieves the provider token from the request context.
func TokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*oauth2.Token)
	return token, ok
}

// WithIdentity returns a context carrying the given identity. Used by the
// stdio transport where there is no HTTP middleware to populate it.
func WithIdentity(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, identityContextKey, email)
}

// actionableErrorMessage converts technical errors into user-friendly, actionable messages
func actionableErrorMessage(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
		return "Token is invalid or expired. Please re-authenticate through your MCP client to continue."
	}

	if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
		return "Access denied by the mail provider. Please ensure your token has the required scopes and re-authenticate through your MCP client."
	}

	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "dial") {
		return "Unable to verify token with the mail provider due to network issues. Please try again in a moment."
	}

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return "Provider rate limit exceeded. Please wait a moment and try again."
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		return "The mail provider is temporarily unavailable. Please try again in a few minutes."
	}

	return fmt.Sprintf("Token validation failed: %v. Please re-authenticate through your MCP client.", err)
}
