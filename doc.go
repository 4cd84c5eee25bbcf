// Package goHMS is a client SDK for the housing-management REST API: properties,
// buildings, units, leases and tenants behind a bearer-token session.
//
// A [Client] owns exactly one session. It attaches the access token to every
// request, exchanges the refresh cookie for a new token when the API answers
// 401, replays the failed request once, and clears the session (broadcasting
// a logout) when the refresh is rejected.
//
// Reads go through a keyed cache with per-class staleness windows; concurrent
// reads of the same key share one request. Mutations invalidate the affected
// list and detail entries only after the server accepts them.
//
// # Architecture boundaries
//
// goHMS is the public surface. It exposes [Client], [Builder], [Config], the
// domain types and [Collection]. Transport wiring, flow orchestration and the
// stub backend live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Perform I/O during [Builder.Build].
//   - Let any code path other than the session methods write the access token.
//   - Retry mutations.
package goHMS
