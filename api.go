package goHMS

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/MrEthical07/goHMS/internal/rate"
	"github.com/MrEthical07/goHMS/validate"
)

const (
	maxBodyBytes  = 8 << 20
	maxErrorBytes = 64 << 10
)

// envelope is the API's success wrapper: {"status":"success","data":...}.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// errorBody covers the error shapes the API returns.
type errorBody struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
	Fields  map[string]string `json:"fields"`
}

// do sends one request through the session-aware client and decodes a 2xx
// body into out. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("goHMS: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ua := c.config.API.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(req, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBytes))
		return nil
	}
	return decodeBody(resp.Body, out)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.String() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// transportError maps a failed round trip. Session errors raised by the
// refresh path pass through; everything else that is not the caller's own
// cancellation becomes ErrNetwork.
func transportError(ctx context.Context, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	switch {
	case errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrNetwork), errors.Is(err, ErrClientClosed):
		return err
	case errors.Is(err, rate.ErrRateLimited):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func readAPIError(req *http.Request, resp *http.Response) error {
	apiErr := &APIError{
		Status:    resp.StatusCode,
		Method:    req.Method,
		Path:      req.URL.Path,
		RequestID: resp.Header.Get("X-Request-ID"),
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	var body errorBody
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		apiErr.Fields = body.Errors
		if len(apiErr.Fields) == 0 {
			apiErr.Fields = body.Fields
		}
	}
	return apiErr
}

// decodeBody unwraps the success envelope when present and accepts bare bodies.
func decodeBody(r io.Reader, out any) error {
	data, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	payload := data
	var env envelope
	if json.Unmarshal(data, &env) == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		payload = env.Data
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return nil
}

// getWithRetry is a GET that retries network failures and 502/503/504 up to
// Config.Retry.ReadAttempts attempts in total. 4xx replies are never retried.
func (c *Client) getWithRetry(ctx context.Context, path string, query url.Values, out any) error {
	attempts := c.config.Retry.ReadAttempts
	if attempts <= 1 {
		return c.do(ctx, http.MethodGet, path, query, nil, out)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.Retry.InitialInterval
	b.MaxInterval = c.config.Retry.MaxInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.do(ctx, http.MethodGet, path, query, nil, out)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.metricInc(MetricReadRetry)
			c.logger.DebugContext(ctx, "goHMS: retrying read",
				"path", path,
				"attempt", attempt,
				"wait", wait,
				"err", err,
			)
		}),
	)
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRefreshFailed) {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

type defaulter interface {
	applyDefaults()
}

// validateInput applies input defaults and runs the struct validator. v must
// be a pointer.
func (c *Client) validateInput(v any) error {
	if d, ok := v.(defaulter); ok {
		d.applyDefaults()
	}

	err := c.validator.Struct(v)
	if err == nil {
		return nil
	}
	var fields validate.FieldErrors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: map[string]string(fields)}
	}
	return err
}
