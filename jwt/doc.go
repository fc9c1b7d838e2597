// Package jwt decodes Bedrud access tokens on the client and, for tests and local tooling,
// issues and verifies them the way the backend does.
//
// # Decoding
//
// [Decode] never verifies signatures: the client cannot hold the backend key. It only
// enforces the claims schema (userId, email, accesses, provider, exp, iat) and reports any
// structural problem as [ErrMalformedToken].
//
// # Issuing
//
// [Signer] mints and verifies HS256/Ed25519 tokens carrying the same claims. It backs the
// in-process fake backend and the load-test command; production code never signs tokens.
package jwt
