// Package actionurl issues and verifies short-lived, single-use signed URLs
// that let a non-authenticated surface (the HTML digest page) trigger one
// narrow action on one message without an OAuth session.
//
// A URL is an HMAC-SHA256 signature over "action:itemId:auxId:expiry" plus a
// single-use nonce record in the durable store keyed by the signature. The
// nonce is consumed before the guarded action runs: if the action then
// fails, the URL is spent. Failing toward "can no longer be used" is the
// intended direction; a captured URL must never be replayable.
package actionurl

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/petrel-mail/petrel/internal/storage"
)

// Action is the operation a signed URL authorizes.
type Action string

const (
	ActionArchive Action = "archive"
	ActionDelete  Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionArchive || a == ActionDelete
}

// Verification failures, in check order.
var (
	ErrExpired      = errors.New("action URL has expired")
	ErrBadSignature = errors.New("action URL signature is invalid")
	ErrAlreadyUsed  = errors.New("action URL has already been used")
)

// DefaultTTL is how long issued URLs stay valid.
const DefaultTTL = 24 * time.Hour

const noncePrefix = "action-nonce:"

// Sign computes the signature for an action over one item. auxID carries
// secondary routing state (the item's current mailbox) so a URL cannot be
// redirected to a different folder than it was issued for.
func Sign(action Action, itemID, auxID string, expiry int64, key []byte) string {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s:%s:%s:%d", action, itemID, auxID, expiry)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature. Expiry is rejected before the cryptographic
// comparison (cheap rejection first); the signature comparison itself is
// constant-time.
func Verify(action Action, itemID, auxID string, expiry int64, signature string, key []byte, now time.Time) error {
	if now.Unix() > expiry {
		return ErrExpired
	}
	expected := Sign(action, itemID, auxID, expiry, key)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// Issuer creates and consumes single-use action URLs.
type Issuer struct {
	key     []byte
	store   storage.Store
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer creates an Issuer. baseURL is the public base of the serving
// instance, e.g. "https://mail.example.com".
func NewIssuer(key []byte, store storage.Store, baseURL string) *Issuer {
	return &Issuer{
		key:     key,
		store:   store,
		baseURL: baseURL,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
}

// SetTTL overrides the validity window for subsequently issued URLs.
func (i *Issuer) SetTTL(ttl time.Duration) {
	i.ttl = ttl
}

// SetClock overrides the issuer's clock for tests.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// Issue signs a URL for one action on one item and records its single-use
// nonce with the same expiry as the URL itself.
func (i *Issuer) Issue(ctx context.Context, action Action, itemID, auxID string) (string, error) {
	if !action.Valid() {
		return "", fmt.Errorf("unknown action %q", action)
	}

	expiry := i.now().Add(i.ttl).Unix()
	signature := Sign(action, itemID, auxID, expiry, i.key)

	if err := i.store.Set(ctx, noncePrefix+signature, []byte(itemID), i.ttl); err != nil {
		return "", fmt.Errorf("failed to record action nonce: %w", err)
	}

	query := url.Values{
		"op":  {string(action)},
		"id":  {itemID},
		"aux": {auxID},
		"exp": {fmt.Sprintf("%d", expiry)},
		"sig": {signature},
	}
	return i.baseURL + "/action?" + query.Encode(), nil
}

// Consume verifies a presented URL's parameters and atomically spends its
// nonce. After Consume returns nil the URL is dead regardless of whether
// the caller's subsequent action succeeds.
func (i *Issuer) Consume(ctx context.Context, action Action, itemID, auxID string, expiry int64, signature string) error {
	if err := Verify(action, itemID, auxID, expiry, signature, i.key, i.now()); err != nil {
		return err
	}

	existed, err := i.store.Delete(ctx, noncePrefix+signature)
	if err != nil {
		return fmt.Errorf("failed to consume action nonce: %w", err)
	}
	if !existed {
		return ErrAlreadyUsed
	}
	return nil
}
