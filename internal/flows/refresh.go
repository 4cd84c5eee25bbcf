package flows

import (
	"context"
)

// RefreshResponse is the body returned by the refresh endpoint.
type RefreshResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	// RefreshFailureNoCookie means there was no refresh cookie to exchange.
	RefreshFailureNoCookie
	// RefreshFailureRequest covers transport errors and non-2xx replies.
	RefreshFailureRequest
	// RefreshFailureEmptyToken means the server answered 2xx without a token.
	RefreshFailureEmptyToken
	// RefreshFailureSuperseded means the session changed (logout or new login)
	// while the refresh was in flight; the token was discarded.
	RefreshFailureSuperseded
)

// RefreshResult carries the new access token or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Token   string
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Path string
	// HasCookie reports whether a refresh cookie is held.
	HasCookie func() bool
	// Post sends the refresh request without bearer or refresh.
	Post func(ctx context.Context, path string, out any) error
	// Epoch identifies the current session generation.
	Epoch func() uint64
	// Apply installs token if the session is still at epoch.
	Apply func(ctx context.Context, epoch uint64, token string) bool
}

// RunRefresh exchanges the refresh cookie for a new access token. Concurrent
// runs are independent; the last successful Apply wins.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	epoch := deps.Epoch()

	if deps.HasCookie != nil && !deps.HasCookie() {
		return RefreshResult{Failure: RefreshFailureNoCookie}
	}

	var resp RefreshResponse
	if err := deps.Post(ctx, deps.Path, &resp); err != nil {
		return RefreshResult{Failure: RefreshFailureRequest, Err: err}
	}

	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return RefreshResult{Failure: RefreshFailureEmptyToken}
	}

	if !deps.Apply(ctx, epoch, token) {
		return RefreshResult{Failure: RefreshFailureSuperseded}
	}
	return RefreshResult{Token: token}
}
