package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bedrud/bedrud-go/middleware"
)

// Request describes an authenticated backend call.
type Request struct {
	Method string
	// Path is relative to the gateway base URL.
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
	// Raw skips JSON decoding. Do then returns the open response and the caller closes
	// its body.
	Raw bool
}

// AuthClient performs authenticated calls against the backend.
type AuthClient struct {
	g    *Gateway
	http *http.Client
}

// NewAuthClient returns an [AuthClient] that obtains bearer tokens from source. It shares
// the gateway's HTTP client settings with a [middleware.BearerTransport] layered on top.
func NewAuthClient(g *Gateway, source middleware.TokenSource) *AuthClient {
	client := *g.http
	client.Transport = &middleware.BearerTransport{Base: g.http.Transport, Source: source}
	return &AuthClient{g: g, http: &client}
}

// Do sends req. Token source failures are returned unchanged; a nil token sends the request
// without credentials. Non-2xx responses yield [*HTTPError]. Unless req.Raw is set, a
// non-empty body is decoded into out (when out is non-nil) and the body is closed.
func (c *AuthClient) Do(ctx context.Context, req Request, out any) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := c.g.newRequest(ctx, method, req.Path, req.Query, req.Body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		var tokenErr *middleware.TokenError
		if errors.As(err, &tokenErr) {
			return nil, tokenErr.Err
		}
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, &HTTPError{Status: resp.StatusCode}
	}
	if req.Raw {
		return resp, nil
	}

	defer drain(resp.Body)
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, fmt.Errorf("decode %s %s response: %w", method, req.Path, err)
	}
	return resp, nil
}

// Get is Do with GET and JSON decoding into out.
func (c *AuthClient) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
	return err
}

// Send is Do with a JSON body and JSON decoding into out.
func (c *AuthClient) Send(ctx context.Context, method, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Method: method, Path: path, Body: body}, out)
	return err
}
