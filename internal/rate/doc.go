// Package rate holds the two throttles used by goHMS.
//
// # Window semantics
//
// [Limiter] is a Redis fixed-window counter (INCR, then EXPIRE on the first hit)
// used by the stub API to slow down credential guessing. Key prefixes:
//   - hl:  login per-email
//   - hli: login per-IP
//   - hr:  refresh per-token
//
// [Throttle] is a client-side token bucket (golang.org/x/time/rate) that spaces
// outgoing API requests.
package rate
