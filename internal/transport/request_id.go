package transport

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the correlation header sent with every request.
const RequestIDHeader = "X-Request-ID"

// RequestID sets [RequestIDHeader] from the context or a fresh UUID when absent.
type RequestID struct {
	Base http.RoundTripper
}

// RoundTrip implements [http.RoundTripper].
func (r *RequestID) RoundTrip(req *http.Request) (*http.Response, error) {
	base := r.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get(RequestIDHeader) != "" {
		return base.RoundTrip(req)
	}

	id := RequestIDFromContext(req.Context())
	if id == "" {
		id = uuid.NewString()
	}
	out := req.Clone(req.Context())
	out.Header.Set(RequestIDHeader, id)
	return base.RoundTrip(out)
}
