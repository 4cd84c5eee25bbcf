package goHMS

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestAPIErrorUnwrapsByStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:            ErrResourceNotFound,
		http.StatusUnauthorized:        ErrAuthorizationExpired,
		http.StatusForbidden:           ErrForbidden,
		http.StatusBadRequest:          ErrValidation,
		http.StatusUnprocessableEntity: ErrValidation,
		http.StatusTooManyRequests:     ErrRateLimited,
	}
	for status, want := range cases {
		err := error(&APIError{Status: status, Method: http.MethodGet, Path: "/units"})
		if !errors.Is(err, want) {
			t.Fatalf("status %d: errors.Is(%v) = false", status, want)
		}
	}

	err := error(&APIError{Status: http.StatusInternalServerError})
	if errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrValidation) {
		t.Fatal("500 must not match a client-error sentinel")
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Status: http.StatusNotFound, Method: http.MethodGet, Path: "/api/v1/units/x"}
	if got := err.Error(); !strings.Contains(got, "404 Not Found") {
		t.Fatalf("Error() = %q", got)
	}

	err.Message = "unit not found"
	if got := err.Error(); !strings.Contains(got, "unit not found") {
		t.Fatalf("Error() = %q", got)
	}
}

func TestAPIErrorTemporary(t *testing.T) {
	for _, status := range []int{502, 503, 504} {
		if !(&APIError{Status: status}).Temporary() {
			t.Fatalf("%d should be temporary", status)
		}
	}
	for _, status := range []int{400, 401, 404, 500} {
		if (&APIError{Status: status}).Temporary() {
			t.Fatalf("%d should not be temporary", status)
		}
	}
}

func TestValidationErrorSortsFields(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"title": "title is required",
		"city":  "city is required",
	}}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError must match ErrValidation")
	}
	want := "goHMS: validation failed: city: city is required, title: title is required"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
