package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bedrud/bedrud-go/middleware"
)

func staticSource(token string, err error) middleware.TokenSource {
	return middleware.TokenSourceFunc(func(context.Context) (string, error) { return token, err })
}

func newClientTest(t *testing.T, h http.HandlerFunc, source middleware.TokenSource) *AuthClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := New(Config{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	return NewAuthClient(g, source)
}

func TestAuthClientAttachesBearerAndDecodes(t *testing.T) {
	var auth, path string
	c := newClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_, _ = io.WriteString(w, `{"ok":true}`)
	}, staticSource("tok", nil))

	var out struct{ OK bool }
	require.NoError(t, c.Get(context.Background(), "/admin/rooms", nil, &out))
	require.True(t, out.OK)
	require.Equal(t, "Bearer tok", auth)
	require.Equal(t, "/api/admin/rooms", path)
}

func TestAuthClientTokenErrorPropagatesUnchanged(t *testing.T) {
	expired := errors.New("session expired")
	called := false
	c := newClientTest(t, func(http.ResponseWriter, *http.Request) { called = true }, staticSource("", expired))

	_, err := c.Do(context.Background(), Request{Path: "/x"}, nil)
	require.Same(t, expired, err)
	require.False(t, called)
}

func TestAuthClientNoSessionSendsUnauthenticated(t *testing.T) {
	var values []string
	c := newClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		values = r.Header.Values("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}, staticSource("", nil))

	var out map[string]any
	_, err := c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/x"}, &out)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestAuthClientHTTPError(t *testing.T) {
	c := newClientTest(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}, staticSource("tok", nil))

	err := c.Send(context.Background(), http.MethodPost, "/x", map[string]string{"a": "b"}, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusForbidden, httpErr.Status)
	require.Equal(t, "http error: status 403", err.Error())
}

func TestAuthClientRawResponse(t *testing.T) {
	c := newClientTest(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "plain text")
	}, staticSource("tok", nil))

	resp, err := c.Do(context.Background(), Request{Path: "/x", Raw: true}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "plain text", string(body))
}

func TestAuthClientDecodeError(t *testing.T) {
	c := newClientTest(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}, staticSource("tok", nil))

	var out map[string]any
	err := c.Get(context.Background(), "/x", nil, &out)
	require.Error(t, err)
	var httpErr *HTTPError
	require.False(t, errors.As(err, &httpErr))
}
