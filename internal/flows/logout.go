package flows

import (
	"context"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	// Post notifies the server. Failures are reported to Warn and otherwise ignored.
	Post func(ctx context.Context, path string) error
	Warn func(msg string, args ...any)
	// ClearLocal wipes the token, refresh cookie, user and cached data.
	ClearLocal func(ctx context.Context) error
	// Broadcast notifies logout observers.
	Broadcast func()
}

// RunLogout performs a best-effort server logout followed by an unconditional
// local clear and broadcast. Only a local clear failure is returned.
func RunLogout(ctx context.Context, path string, deps LogoutDeps) error {
	if deps.Post != nil {
		if err := deps.Post(ctx, path); err != nil && deps.Warn != nil {
			deps.Warn("goHMS: server logout failed", "err", err)
		}
	}

	err := deps.ClearLocal(context.WithoutCancel(ctx))
	deps.Broadcast()
	return err
}
