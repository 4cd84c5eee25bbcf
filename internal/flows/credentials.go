package flows

import (
	"context"
	"errors"
)

// AuthResponse is the body returned by the login and register endpoints.
// Some deployments name the token field "token"; both are accepted.
type AuthResponse[U any] struct {
	User        *U     `json:"user"`
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

// AccessTokenValue returns whichever token field the server populated.
func (r *AuthResponse[U]) AccessTokenValue() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

// CredentialFailureKind classifies login/register failures for root-level mapping.
type CredentialFailureKind int

const (
	CredentialFailureNone CredentialFailureKind = iota
	CredentialFailureRequest
	CredentialFailureResponse
	CredentialFailureCommit
)

// CredentialResult carries the committed session or failure metadata.
type CredentialResult[U any] struct {
	Failure CredentialFailureKind
	Err     error
	// ClearErr is set when clearing stored credentials after a failure also failed.
	ClearErr error
	User     *U
	Token    string
}

// CredentialDeps captures login/register dependencies.
type CredentialDeps[U any] struct {
	// Post sends body to path without bearer or refresh and decodes the reply into out.
	Post func(ctx context.Context, path string, body, out any) error
	// Commit atomically installs token and user and persists them.
	Commit func(ctx context.Context, token string, user *U) error
	// Clear wipes every stored credential.
	Clear func(ctx context.Context) error

	ErrUnexpectedResponse error
}

// RunCredentialExchange posts credentials and commits the returned session. Any
// failure leaves the session fully cleared.
func RunCredentialExchange[U any](ctx context.Context, path string, body any, deps CredentialDeps[U]) CredentialResult[U] {
	fail := func(kind CredentialFailureKind, err error) CredentialResult[U] {
		res := CredentialResult[U]{Failure: kind, Err: err}
		if clearErr := deps.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			res.ClearErr = clearErr
		}
		return res
	}

	var resp AuthResponse[U]
	if err := deps.Post(ctx, path, body, &resp); err != nil {
		return fail(CredentialFailureRequest, err)
	}

	token := resp.AccessTokenValue()
	if token == "" || resp.User == nil {
		return fail(CredentialFailureResponse, unexpected(deps.ErrUnexpectedResponse, "missing user or access token"))
	}

	if err := deps.Commit(ctx, token, resp.User); err != nil {
		return fail(CredentialFailureCommit, err)
	}

	return CredentialResult[U]{User: resp.User, Token: token}
}

func unexpected(sentinel error, msg string) error {
	if sentinel == nil {
		return errors.New(msg)
	}
	return errors.Join(sentinel, errors.New(msg))
}
