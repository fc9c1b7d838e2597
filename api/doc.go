// Package api wraps the Bedrud room and admin endpoints.
//
// Every call goes through an authenticated [gateway.AuthClient], so the bearer token is
// obtained from the session manager and refreshed when needed. Calls made without a
// session are sent unauthenticated and the backend answers 401, surfaced as
// [*gateway.HTTPError].
package api
