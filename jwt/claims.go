package jwt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when an access token cannot be decoded into [Claims].
var ErrMalformedToken = errors.New("malformed access token")

// AdminAccess is the accesses entry that marks an administrator.
const AdminAccess = "admin"

// Claims is the payload carried by a Bedrud access token.
type Claims struct {
	UserID   string   `json:"userId"`
	Email    string   `json:"email,omitempty"`
	Accesses []string `json:"accesses,omitempty"`
	Provider string   `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

var decoder = jwt.NewParser()

// Decode parses token without verifying its signature and validates the claims schema.
// Every failure wraps [ErrMalformedToken].
func Decode(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	claims := &Claims{}
	if _, _, err := decoder.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId claim", ErrMalformedToken)
	}

	return claims, nil
}

// ExpiredAt reports whether the token carries an exp claim strictly before now.
// Tokens without exp never expire.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Before(now)
}

// IsAdmin reports whether the accesses claim contains [AdminAccess].
func (c *Claims) IsAdmin() bool {
	return c != nil && slices.Contains(c.Accesses, AdminAccess)
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
