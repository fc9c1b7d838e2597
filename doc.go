// Package bedrud is a session client for the Bedrud video-meeting backend.
//
// It keeps a signed-in user's access and refresh tokens plus a cached profile across two
// persistence tiers, hands out valid access tokens and refreshes them transparently, and
// authenticates calls to the room and admin endpoints.
//
// A [Client] is assembled with [Builder]:
//
//	client, err := bedrud.New().
//		WithBaseURL("https://bedrud.example/api").
//		WithDurableTier(fileTier).
//		Build(ctx)
//
// # Architecture boundaries
//
// bedrud is the public surface: [Client], [Builder], [Manager], [Config] and the event and
// metrics types. Persistence lives in session, backend auth calls in gateway, room and
// admin calls in api and the media-server boundary in media. Those packages never import
// bedrud.
//
// # Refresh
//
// [Manager.Token] refreshes an expired access token at most once per refresh token, no
// matter how many goroutines ask at the same time. A failed refresh clears the session
// before [ErrSessionExpired] is returned.
//
// # What this package must NOT do
//
//   - Verify token signatures. Claims are decoded for expiry and identity only; the
//     backend remains the authority.
//   - Retry failed backend calls.
//   - Surface malformed persisted state as an error. It reads as signed out.
package bedrud
