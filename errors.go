package goHMS

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when login or register is rejected by the server.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthorizationExpired is returned when the API rejects the access token and
	// no refresh could recover it.
	ErrAuthorizationExpired = errors.New("authorization expired")
	// ErrRefreshFailed is returned when the refresh cookie is missing, expired or
	// rejected. The session has been cleared.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrNetwork wraps transport failures: timeouts, DNS, refused connections.
	ErrNetwork = errors.New("network error")
	// ErrValidation is matched by [ValidationError] and by 400/422 replies.
	ErrValidation = errors.New("validation failed")
	// ErrResourceNotFound is matched by 404 replies.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrForbidden is matched by 403 replies.
	ErrForbidden = errors.New("forbidden")
	// ErrQueryDisabled is returned by detail reads with an empty id. No request is made.
	ErrQueryDisabled = errors.New("query disabled: empty id")
	// ErrNotAuthenticated is returned by operations that need a session when there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrRateLimited is returned when the client throttle or the server (429) refuses a request.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnexpectedResponse is returned when a 2xx body cannot be decoded.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrClientClosed is returned after [Client.Close].
	ErrClientClosed = errors.New("client closed")
	// ErrBuilderUsed is returned by a second [Builder.Build].
	ErrBuilderUsed = errors.New("builder already used")
)

// APIError is a non-2xx reply from the API. It matches the sentinel for its
// status class through errors.Is.
type APIError struct {
	Status    int
	Method    string
	Path      string
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("goHMS: %s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Unwrap maps the status to a sentinel. Statuses without one unwrap to nil.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrResourceNotFound
	case http.StatusUnauthorized:
		return ErrAuthorizationExpired
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Temporary reports whether the status is worth retrying for an idempotent read.
func (e *APIError) Temporary() bool {
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ValidationError is a client-side validation failure. It never reaches the network.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "goHMS: validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
