// Package gateway talks to the Bedrud backend REST API.
//
// [Gateway] performs the unauthenticated auth calls (login, register, refresh, OAuth
// start) and maps every non-success status to an [*AuthError] with a fixed message per
// operation. [AuthClient] performs authenticated calls: it asks a token source for the
// access token, attaches it as a bearer credential and maps non-success statuses to
// [*HTTPError].
//
// # What this package must NOT do
//
//   - Persist tokens or profiles.
//   - Decide when to refresh; that is the session manager's job.
//   - Retry failed requests.
package gateway
