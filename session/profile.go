package session

import (
	"context"
	"errors"
)

// ErrMalformedProfile is returned by ProfileStore.Set for a profile without an ID.
var ErrMalformedProfile = errors.New("malformed user profile")

// ProfileStore persists the signed-in [UserProfile] with the same tier rules as
// [TokenStore]. The two stores are independent; callers order their writes.
type ProfileStore struct {
	s *tieredStore[UserProfile]
}

// NewProfileStore returns a ProfileStore over the given tiers.
func NewProfileStore(ephemeral, durable Tier, opts ...Option) *ProfileStore {
	o := buildOptions(DefaultProfileKey, opts)
	return &ProfileStore{s: newTieredStore(ephemeral, durable, o, validateProfile, cloneProfile)}
}

func validateProfile(p *UserProfile) error {
	if p.ID == "" {
		return ErrMalformedProfile
	}
	return nil
}

func cloneProfile(p *UserProfile) *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Key returns the storage key.
func (p *ProfileStore) Key() string { return p.s.key }

// Read returns the persisted profile, preferring the ephemeral tier.
func (p *ProfileStore) Read(ctx context.Context) (*UserProfile, error) {
	return p.s.read(ctx)
}

// Load reads the persisted profile into the in-memory value.
func (p *ProfileStore) Load(ctx context.Context) error {
	return p.s.load(ctx)
}

// Current returns a copy of the in-memory profile.
func (p *ProfileStore) Current() *UserProfile {
	return p.s.get()
}

// Set stores the profile; see [TokenStore.Set].
func (p *ProfileStore) Set(ctx context.Context, profile UserProfile, remember bool) error {
	return p.s.set(ctx, &profile, remember)
}

// Update applies fn to a copy of the current profile and stores the result in the tiers
// that already hold it. It is a no-op without a profile.
func (p *ProfileStore) Update(ctx context.Context, fn func(*UserProfile)) error {
	if fn == nil {
		return nil
	}
	return p.s.update(ctx, fn)
}

// Clear removes the profile from both tiers; see [TokenStore.Clear].
func (p *ProfileStore) Clear(ctx context.Context) error {
	return p.s.clear(ctx)
}

// Subscribe calls fn with the current profile and after every change.
func (p *ProfileStore) Subscribe(fn func(*UserProfile)) (cancel func()) {
	return p.s.subscribe(fn)
}

// Follow mirrors durable changes made by other processes until ctx is done.
func (p *ProfileStore) Follow(ctx context.Context) error {
	return p.s.follow(ctx)
}
