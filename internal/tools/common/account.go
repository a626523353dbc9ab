package common

import (
	"context"

	"github.com/petrel-mail/petrel/internal/auth"
)

// GetAccountFromArgs extracts the account identity from request arguments
// and context. For OAuth-authenticated requests, uses the authenticated
// email. Otherwise defaults to "default" or the explicitly provided account
// name.
//
// Priority order:
//  1. Authenticated identity from context (set by the bearer middleware)
//  2. Explicit "account" argument in request
//  3. "default"
func GetAccountFromArgs(ctx context.Context, args map[string]interface{}) string {
	// The bearer middleware puts the validated email on the context; a
	// caller can never pick another user's account by argument.
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != "" {
		return identity
	}

	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return "default"
}
