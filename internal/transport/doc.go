// Package transport holds the http.RoundTripper chain used by the goHMS client.
//
// Outermost to innermost: [Throttled] spaces requests, [RequestID] tags them,
// [Logged] records them, and [Bearer] attaches the access token and runs the
// single refresh-and-replay cycle on a 401.
//
// # What this package must NOT do
//
//   - Hold session state. Tokens and refresh come from callbacks owned by the client.
//   - Refresh more than once per logical request.
package transport
