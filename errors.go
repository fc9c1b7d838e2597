package bedrud

import (
	"errors"

	"github.com/bedrud/bedrud-go/jwt"
	"github.com/bedrud/bedrud-go/session"
)

var (
	// ErrSessionExpired is returned by Token after a failed refresh. The session has
	// already been cleared when it is returned.
	ErrSessionExpired = errors.New("session expired")
	// ErrLoginFailed is returned when the backend accepts a login but the response lacks
	// tokens or a user.
	ErrLoginFailed = errors.New("login failed")
	// ErrRegistrationFailed is returned when a register response carries no usable tokens.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrClientClosed is returned by calls made after Client.Close.
	ErrClientClosed = errors.New("client closed")
	// ErrBuilderUsed is returned by a second Builder.Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrMalformedToken is returned when an access token cannot be decoded.
	ErrMalformedToken = jwt.ErrMalformedToken
	// ErrStorageUnavailable wraps persistence tier failures.
	ErrStorageUnavailable = session.ErrStorageUnavailable
)
