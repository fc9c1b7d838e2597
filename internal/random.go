package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const opaqueTokenRawSize = 48

// NewOpaqueToken returns a random base64url token, used for refresh tokens and
// media-server credentials issued by the fake backend.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidOpaqueToken reports whether token has the shape produced by NewOpaqueToken.
func ValidOpaqueToken(token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return err
	}
	if len(raw) != opaqueTokenRawSize {
		return errors.New("invalid opaque token size")
	}
	return nil
}
