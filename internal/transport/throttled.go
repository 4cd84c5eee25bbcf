package transport

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/goHMS/internal/rate"
)

// Throttled waits on a shared token bucket before every request.
type Throttled struct {
	Base     http.RoundTripper
	Throttle *rate.Throttle

	// OnLimited is called when a request is rejected without being sent.
	OnLimited func()
}

// RoundTrip implements [http.RoundTripper].
func (t *Throttled) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if err := t.Throttle.Wait(req.Context()); err != nil {
		closeBody(req)
		if t.OnLimited != nil && errors.Is(err, rate.ErrRateLimited) {
			t.OnLimited()
		}
		return nil, err
	}
	return base.RoundTrip(req)
}

// closeBody honors the RoundTripper contract of closing the body on error.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
