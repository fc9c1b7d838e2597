package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/bedrud/bedrud-go/jwt"
)

// TokenStore persists the current [AuthTokens] across the ephemeral and durable tiers.
//
// A non-nil value always carries an access token that [jwt.Decode] accepts; it may be
// expired. Values that violate this are rejected on Set and read as absent.
type TokenStore struct {
	s *tieredStore[AuthTokens]
}

// NewTokenStore returns a TokenStore over the given tiers. durable may be nil, in which
// case remember has no effect. The store starts empty; call Load to restore a session.
func NewTokenStore(ephemeral, durable Tier, opts ...Option) *TokenStore {
	o := buildOptions(DefaultTokenKey, opts)
	return &TokenStore{s: newTieredStore(ephemeral, durable, o, validateTokens, cloneTokens)}
}

func validateTokens(t *AuthTokens) error {
	if t.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", jwt.ErrMalformedToken)
	}
	if _, err := jwt.Decode(t.AccessToken); err != nil {
		return err
	}
	return nil
}

func cloneTokens(t *AuthTokens) *AuthTokens {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Key returns the storage key.
func (t *TokenStore) Key() string { return t.s.key }

// Read returns the persisted tokens, preferring the ephemeral tier. Absent or malformed
// entries yield nil without error.
func (t *TokenStore) Read(ctx context.Context) (*AuthTokens, error) {
	return t.s.read(ctx)
}

// Load reads the persisted tokens into the in-memory value.
func (t *TokenStore) Load(ctx context.Context) error {
	return t.s.load(ctx)
}

// Current returns a copy of the in-memory tokens, or nil when there is no session.
func (t *TokenStore) Current() *AuthTokens {
	return t.s.get()
}

// Set stores tokens in the ephemeral tier and, when remember is true, in the durable tier.
func (t *TokenStore) Set(ctx context.Context, tokens AuthTokens, remember bool) error {
	return t.s.set(ctx, &tokens, remember)
}

// UpdateAccessToken replaces the access token and keeps the refresh token. It is a no-op
// when there is no session. The durable tier is rewritten only if it already holds an entry.
func (t *TokenStore) UpdateAccessToken(ctx context.Context, access string) error {
	return t.Rotate(ctx, access, "")
}

// Rotate is UpdateAccessToken that also replaces the refresh token when refresh is not
// empty. The in-memory value is updated even when persisting fails; the
// error is still returned.
func (t *TokenStore) Rotate(ctx context.Context, access, refresh string) error {
	if access == "" {
		return errors.New("access token is required")
	}
	return t.s.update(ctx, func(cur *AuthTokens) {
		cur.AccessToken = access
		if refresh != "" {
			cur.RefreshToken = refresh
		}
	})
}

// RotateIf is Rotate applied only while the current refresh token equals expectRefresh.
// applied is false when the session was cleared or replaced in the meantime; nothing is
// written then.
func (t *TokenStore) RotateIf(ctx context.Context, expectRefresh, access, refresh string) (applied bool, err error) {
	if access == "" {
		return false, errors.New("access token is required")
	}
	return t.s.updateIf(ctx,
		func(cur *AuthTokens) bool { return cur.RefreshToken == expectRefresh },
		func(cur *AuthTokens) {
			cur.AccessToken = access
			if refresh != "" {
				cur.RefreshToken = refresh
			}
		})
}

// Clear removes the tokens from both tiers. The in-memory value is always cleared, even
// when a tier fails; tier errors are joined and returned. Clearing twice is a no-op.
func (t *TokenStore) Clear(ctx context.Context) error {
	return t.s.clear(ctx)
}

// Subscribe calls fn with the current tokens and again after every change. fn must not
// call back into the store. The returned func unsubscribes.
func (t *TokenStore) Subscribe(fn func(*AuthTokens)) (cancel func()) {
	return t.s.subscribe(fn)
}

// Follow blocks until ctx is done, mirroring changes other processes make to the durable
// entry. It returns [ErrWatchUnsupported] when the durable tier is not a [Watcher].
func (t *TokenStore) Follow(ctx context.Context) error {
	return t.s.follow(ctx)
}
