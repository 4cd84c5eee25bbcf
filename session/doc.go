// Package session persists client credentials between process runs: the access token,
// the refresh-token cookie, and the id of the user they belong to.
//
// # Binary encoding
//
// [State] is stored as a compact versioned binary blob ([Encode]/[Decode]) by every
// store implementation. The first byte is the schema version; unknown versions are
// rejected rather than guessed.
//
// # Stores
//
// [MemoryStore] keeps state for the life of the process, [FileStore] writes a 0600 file,
// and [RedisStore] shares state between processes through Redis with a TTL equal to the
// refresh cookie lifetime.
//
// # Architecture boundaries
//
// This package owns persistence and the refresh cookie jar ([RefreshJar]). It does NOT
// decide when credentials are valid, talk to the API, or evaluate permissions; those
// belong to the goHMS client.
//
// # What this package must NOT do
//
//   - Import goHMS, cache, or permission (no upward imports).
//   - Log or expose token values.
package session
