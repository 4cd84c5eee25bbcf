package rate

import "errors"

var (
	// ErrRateLimited is returned when a window or bucket has no budget left.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
