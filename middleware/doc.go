// Package middleware carries bearer credentials over HTTP in both directions.
//
// # Client side
//
//   - [BearerTransport]: an http.RoundTripper that asks a [TokenSource] for the current
//     access token and attaches it as "Authorization: Bearer <token>".
//
// # Server side
//
//   - [BearerToken]: parses an Authorization header value.
//   - [Guard]: rejects requests whose bearer token fails verification and injects the
//     verified claims into the request context. Used by the in-repo fake backend.
//
// # What this package must NOT do
//
//   - Refresh or persist tokens (the TokenSource owns that).
//   - Retry requests.
package middleware
