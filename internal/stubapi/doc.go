// Package stubapi is an in-process implementation of the housing-management
// REST API used by tests, the load-test tool and the runnable example.
//
// It serves the documented contract: {status, data} success envelopes,
// bearer access tokens signed by the jwt package, rotating refresh tokens held
// in Redis and delivered as an HttpOnly cookie, Argon2id password hashes, the
// default permission table, and paginated CRUD for properties, buildings,
// units, leases and tenants.
//
// Knobs on [Server] let tests expire access tokens, revoke refresh tokens,
// inject failures and latency, and count requests per route.
package stubapi
