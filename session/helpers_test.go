package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bedrud/bedrud-go/jwt"
	"github.com/stretchr/testify/require"
)

func issueToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	signer, err := jwt.NewSigner(jwt.SignerConfig{
		AccessTTL:     ttl,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("session-test-secret"),
	})
	require.NoError(t, err)
	tok, err := signer.Issue(jwt.Identity{UserID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return tok
}

// failingTier fails every call with ErrStorageUnavailable.
type failingTier struct{}

var errTierDown = errors.New("tier down")

func (failingTier) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.Join(ErrStorageUnavailable, errTierDown)
}

func (failingTier) Set(context.Context, string, []byte) error {
	return errors.Join(ErrStorageUnavailable, errTierDown)
}

func (failingTier) Delete(context.Context, string) error {
	return errors.Join(ErrStorageUnavailable, errTierDown)
}
