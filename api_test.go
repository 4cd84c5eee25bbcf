package goHMS

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/MrEthical07/goHMS/cache"
	"github.com/MrEthical07/goHMS/internal/rate"
	"github.com/MrEthical07/goHMS/validate"
)

func TestDecodeBodyUnwrapsEnvelope(t *testing.T) {
	var u User
	if err := decodeBody(strings.NewReader(`{"status":"success","data":{"id":"u1","email":"a@b.com","role":"USER"}}`), &u); err != nil {
		t.Fatalf("decodeBody: %v", err)
	}
	if u.ID != "u1" || u.Role != RoleUser {
		t.Fatalf("decoded %+v", u)
	}
}

func TestDecodeBodyAcceptsBareBody(t *testing.T) {
	var u User
	if err := decodeBody(strings.NewReader(`{"id":"u2","email":"c@d.com"}`), &u); err != nil {
		t.Fatalf("decodeBody: %v", err)
	}
	if u.ID != "u2" {
		t.Fatalf("decoded %+v", u)
	}
}

func TestDecodeBodyRejectsGarbage(t *testing.T) {
	var u User
	err := decodeBody(strings.NewReader(`<html>`), &u)
	if !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestTransportErrorMapping(t *testing.T) {
	ctx := context.Background()

	refused := &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}
	if err := transportError(ctx, refused); !errors.Is(err, ErrNetwork) {
		t.Fatalf("refused: %v", err)
	}

	refresh := &url.Error{Op: "Get", URL: "http://x", Err: fmt.Errorf("%w: %w: gone", ErrRefreshFailed, ErrAuthorizationExpired)}
	err := transportError(ctx, refresh)
	if !errors.Is(err, ErrRefreshFailed) || errors.Is(err, ErrNetwork) {
		t.Fatalf("refresh: %v", err)
	}

	limited := &url.Error{Op: "Get", URL: "http://x", Err: fmt.Errorf("throttle: %w", rate.ErrRateLimited)}
	if err := transportError(ctx, limited); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("limited: %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	canceled := &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}
	if err := transportError(cctx, canceled); !errors.Is(err, context.Canceled) || errors.Is(err, ErrNetwork) {
		t.Fatalf("canceled: %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: reset", ErrNetwork), true},
		{&APIError{Status: 503}, true},
		{&APIError{Status: 404}, false},
		{&APIError{Status: 401}, false},
		{fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNetwork), false},
		{context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestListQueryDefaultsShareCacheKey(t *testing.T) {
	c := &Client{config: DefaultConfig()}

	implicit := cache.ListKey(ResourceUnits, c.listQuery(ListParams{Filters: map[string]any{"status": UnitOccupied}}))
	explicit := cache.ListKey(ResourceUnits, c.listQuery(ListParams{Page: 1, Limit: 20, Filters: map[string]any{"status": "OCCUPIED"}}))
	if implicit != explicit {
		t.Fatalf("keys differ: %v vs %v", implicit, explicit)
	}

	other := cache.ListKey(ResourceUnits, c.listQuery(ListParams{Page: 2}))
	if other == implicit {
		t.Fatal("page 2 must not share the page 1 key")
	}
}

func TestValidateInputAppliesDefaults(t *testing.T) {
	c := &Client{validator: validate.New()}

	in := BuildingInput{
		Name:       "Block A",
		PropertyID: "p1",
		Address:    Address{Street: "s", City: "c", State: "st", PostalCode: "1"},
	}
	if err := c.validateInput(&in); err != nil {
		t.Fatalf("validateInput: %v", err)
	}
	if in.Address.Country != "Nigeria" {
		t.Fatalf("Country = %q", in.Address.Country)
	}

	var verr *ValidationError
	if err := c.validateInput(&BuildingInput{}); !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["address.city"]; !ok {
		t.Fatalf("fields = %v, want address.city", verr.Fields)
	}
}
