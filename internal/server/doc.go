// Package server provides HTTP routing, middleware, OAuth state handling and the proxy endpoints.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in the order it was added (first added runs outermost).
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// The standard chain, built by the serve command, is:
//   - [Recovery] : panics become a 500
//   - [RequestID] : X-Request-ID assigned or propagated
//   - [Logging] : one log line per request
//   - [CORS] : github.com/rs/cors, any origin by default
//   - [RateLimit] : golang.org/x/time/rate token bucket, off by default
//
// # Endpoints
//
// [API] serves /search, /login, /callback, /refresh-token, /create-playlist and /health.
// Upstream failures collapse to generic 500s; details only reach the log.
//
// # OAuth State
//
// A [StateStore] issues the state for /login and checks it on /callback:
//   - [NoopStateStore] : generated, never checked
//   - [CookieStateStore] : HS256 JWT in an HttpOnly cookie
//   - [RedisStateStore] : stored with a TTL and consumed with GETDEL
package server
