package transport

import (
	"context"
	"io"
	"net/http"
)

// RefreshFunc exchanges the refresh cookie for a new access token. stale is the
// token the rejected request carried. An error is returned from the original
// request unchanged.
type RefreshFunc func(ctx context.Context, stale string) (string, error)

// Bearer attaches "Authorization: Bearer <token>" and, on a 401, refreshes once
// and replays the request with the new token. A 401 on the replay is returned
// to the caller without another refresh.
type Bearer struct {
	Base    http.RoundTripper
	Token   func() string
	Refresh RefreshFunc

	// OnReplay is called right before a request is replayed after a refresh.
	OnReplay func(*http.Request)
}

// RoundTrip implements [http.RoundTripper].
func (b *Bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if authSkipped(ctx) {
		out := req.Clone(ctx)
		out.Header.Del("Authorization")
		return b.base().RoundTrip(out)
	}

	sent := b.token()
	first := req.Clone(ctx)
	authorize(first, sent)

	resp, err := b.base().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if b.Refresh == nil || refreshSkipped(ctx) || !replayable(req) {
		return resp, nil
	}

	drain(resp.Body)

	token, err := b.Refresh(ctx, sent)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	authorize(retry, token)

	if b.OnReplay != nil {
		b.OnReplay(retry)
	}
	return b.base().RoundTrip(retry)
}

func (b *Bearer) base() http.RoundTripper {
	if b.Base != nil {
		return b.Base
	}
	return http.DefaultTransport
}

func (b *Bearer) token() string {
	if b.Token == nil {
		return ""
	}
	return b.Token()
}

func authorize(req *http.Request, token string) {
	if token == "" {
		req.Header.Del("Authorization")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// replayable reports whether req's body can be rebuilt for a second attempt.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
