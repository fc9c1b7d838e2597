package middleware

import (
	"context"
	"net/http"
)

// TokenSource yields the access token for an outgoing request. An empty token with a
// nil error means "no session": the request is sent without credentials.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to [TokenSource].
type TokenSourceFunc func(ctx context.Context) (string, error)

// AccessToken implements [TokenSource].
func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// TokenError marks a failure of the [TokenSource], as opposed to a transport failure.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string { return "obtain access token: " + e.Err.Error() }

func (e *TokenError) Unwrap() error { return e.Err }

// BearerTransport attaches "Authorization: Bearer <token>" from Source to each request.
type BearerTransport struct {
	// Base defaults to http.DefaultTransport.
	Base   http.RoundTripper
	Source TokenSource
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Source == nil {
		return base.RoundTrip(req)
	}

	token, err := t.Source.AccessToken(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, &TokenError{Err: err}
	}
	if token == "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(out)
}
