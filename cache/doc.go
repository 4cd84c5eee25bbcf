// Package cache is a keyed, time-aware store for server resources with request
// coalescing and an explicit invalidation entry point.
//
// # Freshness
//
// An entry is fresh while now-fetchedAt < staleAfter. Fresh entries are returned without
// a fetch. Time-stale entries are returned immediately and revalidated in the background
// when StaleWhileRevalidate is enabled. Invalidated entries always block on a refetch.
//
// # Coalescing and invalidation
//
// At most one fetch per key is in flight. Each key belongs to a generation that
// [Cache.Invalidate] advances; a fetch started in an older generation is neither joined
// by later readers nor stored.
//
// # What this package must NOT do
//
//   - Perform network I/O itself; callers supply the fetch function.
//   - Retry fetches; retry policy belongs to the caller.
//   - Import goHMS.
package cache
