package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// Logged writes one debug record per attempt. The Authorization header is never logged.
type Logged struct {
	Base   http.RoundTripper
	Logger *slog.Logger

	// Observe receives the duration of every attempt that produced a response.
	Observe func(time.Duration)
}

// RoundTrip implements [http.RoundTripper].
func (l *Logged) RoundTrip(req *http.Request) (*http.Response, error) {
	base := l.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", req.Header.Get(RequestIDHeader),
		"duration", elapsed,
	}
	if err != nil {
		logger.DebugContext(req.Context(), "hms request failed", append(attrs, "err", err)...)
		return nil, err
	}

	if l.Observe != nil {
		l.Observe(elapsed)
	}
	logger.DebugContext(req.Context(), "hms request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}
