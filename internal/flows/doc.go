// Package flows contains the orchestrators behind every session transition of
// the goHMS client: login, register, restore, refresh and logout.
//
// Each Run function accepts a typed dependency struct and returns a result
// value that classifies the outcome. The client owns every resource (HTTP
// client, token store, session state) and maps results to its own errors,
// metrics and events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goHMS (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the dependency functions.
package flows
