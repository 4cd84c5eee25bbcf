package transport

import "context"

type noAuthKey struct{}
type noRefreshKey struct{}
type requestIDKey struct{}

// WithoutAuth marks requests made with ctx as credential exchanges: no bearer
// header is attached and a 401 is returned as-is.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, noAuthKey{}, true)
}

// WithoutRefresh keeps the bearer header but disables refresh on 401.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRefreshKey{}, true)
}

// WithRequestID pins the X-Request-ID used for requests made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by [WithRequestID].
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func authSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(noAuthKey{}).(bool)
	return v
}

func refreshSkipped(ctx context.Context) bool {
	if authSkipped(ctx) {
		return true
	}
	v, _ := ctx.Value(noRefreshKey{}).(bool)
	return v
}
