package goHMS

import (
	"context"

	"github.com/MrEthical07/goHMS/internal/transport"
)

// WithRequestID pins the X-Request-ID header sent by every request made with
// ctx, including a replay after refresh. Without it each request gets a fresh id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the id set by [WithRequestID].
func RequestIDFromContext(ctx context.Context) string {
	return transport.RequestIDFromContext(ctx)
}
