// Package session persists the authenticated session on the client: the token pair
// ([TokenStore]) and the user profile ([ProfileStore]).
//
// # Tiers
//
// Every store writes to two [Tier] values. The ephemeral tier is always written and is
// scoped to the running process (or login session for the CLI). The durable tier is
// written only when the caller asks to be remembered and survives restarts. Reads prefer
// the ephemeral tier and fall back to the durable one; clearing always removes both.
//
// # Architecture boundaries
//
// This package owns persistence and the in-memory observable value. It decodes access
// tokens only to reject structurally invalid ones; expiry and refresh policy belong to
// the Manager in the root package.
//
// # What this package must NOT do
//
//   - Import the root package or gateway (no upward imports).
//   - Make network calls other than through a configured [Tier].
//   - Link the two stores transactionally; callers coordinate cross-store writes.
package session
