// Package services talks to the Spotify accounts service and Web API on behalf of the proxy.
//
// # Spotify Client
//
// [SpotifyClient] wraps the handful of upstream calls the proxy makes:
//   - Authorization URL and code exchange via [oauth2.Config]
//   - Client-credentials token via [clientcredentials.Config]
//   - Refresh-token grant, sent with its own client credential pair
//   - Raw track search whose body is relayed verbatim
//   - Playlist create, add-tracks and unfollow
//   - Typed search through github.com/zmb3/spotify/v2 for the CLI
//
// # Process Token
//
// [TokenProvider] holds the client-credentials token used for unauthenticated search.
// Reads are lock-free; only [TokenProvider.Fetch] writes.
//
// # Error Handling
//
// Non-2xx upstream replies are returned as [*UpstreamError], which matches:
//   - [shared.ErrAPIRequest] : any upstream failure
//   - [shared.ErrTokenExpired] : 401 from the upstream
//
// Transport failures are wrapped with [shared.ErrAPIRequest]. Refresh-token failures also match
// [shared.ErrRefreshFailed].
package services
