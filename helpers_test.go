package bedrud

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bedrud/bedrud-go/internal/fakebackend"
	"github.com/bedrud/bedrud-go/session"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-password-123"
)

func startBackend(t *testing.T, opts fakebackend.Options) (*fakebackend.Server, fakebackend.User) {
	t.Helper()
	srv := fakebackend.Start(opts)
	t.Cleanup(srv.Close)
	u := srv.AddUser(testEmail, testPassword, "Alice")
	return srv, u
}

func newTestClient(t *testing.T, srv *fakebackend.Server, configure func(*Builder)) *Client {
	t.Helper()
	b := New().WithBaseURL(srv.URL())
	if configure != nil {
		configure(b)
	}
	c, err := b.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func storedTokens(t *testing.T, tier session.Tier) *session.AuthTokens {
	t.Helper()
	raw, ok, err := tier.Get(context.Background(), session.DefaultTokenKey)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	var out session.AuthTokens
	require.NoError(t, json.Unmarshal(raw, &out))
	return &out
}

// failKeyTier fails writes of one key and delegates everything else.
type failKeyTier struct {
	session.Tier
	key string
}

func (f failKeyTier) Set(ctx context.Context, key string, value []byte) error {
	if key == f.key {
		return fmt.Errorf("%w: disk full", session.ErrStorageUnavailable)
	}
	return f.Tier.Set(ctx, key, value)
}
