// Package permission provides the static role-to-resource permission table used by
// goHMS authorization checks.
//
// # Model
//
// Actions (view, create, update, delete, approve) are registered in a [Registry] that
// assigns each a bit in a [Mask64]. A [RoleManager] maps role -> resource -> [Rule],
// where a rule carries the allowed action mask and a [Scope] (all records, or only the
// caller's own). A missing role or resource entry denies every action.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The client consults it
// for HasPermission/CanAccess, and the stub API uses the same table to enforce access.
//
// # What this package must NOT do
//
//   - Access the network, Redis, or persisted session state.
//   - Import goHMS, session, or cache.
//   - Mutate a table after Freeze.
package permission
