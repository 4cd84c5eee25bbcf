package flows

import (
	"context"
)

// RestoreOutcome classifies the result of restoring a persisted session.
type RestoreOutcome int

const (
	// RestoreNoToken means nothing was persisted; no request was made.
	RestoreNoToken RestoreOutcome = iota
	// RestoreAuthenticated means the server accepted the token.
	RestoreAuthenticated
	// RestoreRejected means the token (and any refresh) was rejected and the
	// stored credentials were cleared.
	RestoreRejected
	// RestoreFailed means the server could not be asked. Stored credentials are kept.
	RestoreFailed
)

// RestoreResult carries the restored user or the failure that prevented it.
type RestoreResult[U any] struct {
	Outcome RestoreOutcome
	User    *U
	Err     error
}

// RestoreDeps captures session restore dependencies.
type RestoreDeps[U any] struct {
	// Load installs persisted credentials in memory and reports whether an
	// access token was found.
	Load func(ctx context.Context) (bool, error)
	// Me fetches the current user through the refresh-aware client.
	Me func(ctx context.Context) (*U, error)
	// Rejected reports whether err is an authorization failure, including a
	// failed refresh. Load errors it accepts are treated the same way.
	Rejected func(err error) bool
	// Commit sets the user alongside whatever token is current.
	Commit func(ctx context.Context, user *U) error
	// Clear wipes every stored credential.
	Clear func(ctx context.Context) error
}

// RunRestore loads persisted credentials and confirms them against the server.
func RunRestore[U any](ctx context.Context, deps RestoreDeps[U]) RestoreResult[U] {
	found, err := deps.Load(ctx)
	if err != nil {
		if deps.Rejected != nil && deps.Rejected(err) {
			return reject[U](ctx, deps)
		}
		return RestoreResult[U]{Outcome: RestoreFailed, Err: err}
	}
	if !found {
		return RestoreResult[U]{Outcome: RestoreNoToken}
	}

	user, err := deps.Me(ctx)
	if err != nil {
		if deps.Rejected(err) {
			return reject[U](ctx, deps)
		}
		return RestoreResult[U]{Outcome: RestoreFailed, Err: err}
	}
	if user == nil {
		_ = deps.Clear(context.WithoutCancel(ctx))
		return RestoreResult[U]{Outcome: RestoreRejected}
	}

	if err := deps.Commit(ctx, user); err != nil {
		return RestoreResult[U]{Outcome: RestoreFailed, Err: err}
	}
	return RestoreResult[U]{Outcome: RestoreAuthenticated, User: user}
}

func reject[U any](ctx context.Context, deps RestoreDeps[U]) RestoreResult[U] {
	if err := deps.Clear(context.WithoutCancel(ctx)); err != nil {
		return RestoreResult[U]{Outcome: RestoreRejected, Err: err}
	}
	return RestoreResult[U]{Outcome: RestoreRejected}
}
