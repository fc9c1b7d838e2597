package gateway

import (
	"errors"
	"fmt"
)

// Op identifies a gateway auth operation.
type Op string

const (
	OpLogin      Op = "login"
	OpRegister   Op = "register"
	OpRefresh    Op = "refresh"
	OpOAuthStart Op = "oauth"
)

var opMessages = map[Op]string{
	OpLogin:      "Login failed",
	OpRegister:   "Registration failed",
	OpRefresh:    "Token refresh failed",
	OpOAuthStart: "OAuth login failed",
}

// ErrUnknownProvider is returned by OAuthStart for providers the backend does not offer.
var ErrUnknownProvider = errors.New("unknown oauth provider")

// AuthError is returned by [Gateway] operations. The message is fixed per operation and
// never derived from the response body. Status is 0 when no response was received.
type AuthError struct {
	Op     Op
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if msg, ok := opMessages[e.Op]; ok {
		return msg
	}
	return "auth request failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// HTTPError is returned by [AuthClient] for a non-2xx response.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.Status)
}

// StatusCode returns the HTTP status carried by an [*AuthError] or [*HTTPError] in err's
// chain, or 0.
func StatusCode(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
