package stubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goHMS "github.com/MrEthical07/goHMS"
)

type harness struct {
	srv  *Server
	http *httptest.Server
	c    *http.Client
	mr   *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := New(Config{Redis: rdb})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &harness{srv: srv, http: ts, c: &http.Client{Jar: jar}, mr: mr}
}

func (h *harness) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.http.URL+"/api/v1"+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (h *harness) login(t *testing.T, email, pass string) string {
	t.Helper()
	status, body := h.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": pass})
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	return data["accessToken"].(string)
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("admin@hms.test", "admin-password", "Admin", goHMS.RoleAdmin)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, h.http.URL+"/api/v1/auth/login",
		bytes.NewBufferString(`{"email":"admin@hms.test","password":"admin-password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 86400, cookie.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("a@b.com", "right-password", "A", goHMS.RoleUser)
	require.NoError(t, err)

	status, body := h.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Invalid credentials", body["message"])
}

func TestLoginThrottledAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("a@b.com", "right-password", "A", goHMS.RoleUser)
	require.NoError(t, err)

	for range 5 {
		status, _ := h.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "wrong-password"})
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, _ := h.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "right-password"})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestRefreshRotatesToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("a@b.com", "right-password", "A", goHMS.RoleUser)
	require.NoError(t, err)
	h.login(t, "a@b.com", "right-password")

	status, body := h.call(t, http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusOK, status)
	token := body["data"].(map[string]any)["token"].(string)
	assert.NotEmpty(t, token)

	status, _ = h.call(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, h.srv.RevokeRefreshTokens(context.Background()))
	status, _ = h.call(t, http.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func refreshWith(t *testing.T, h *harness, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/api/v1/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRotatedRefreshTokenHonouredDuringGrace(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("a@b.com", "right-password", "A", goHMS.RoleUser)
	require.NoError(t, err)
	h.login(t, "a@b.com", "right-password")

	u, _ := url.Parse(h.http.URL)
	var original string
	for _, c := range h.c.Jar.Cookies(u) {
		if c.Name == "refresh_token" {
			original = c.Value
		}
	}
	require.NotEmpty(t, original)

	// Two exchanges of the same cookie, as concurrent 401s produce.
	first := refreshWith(t, h, original)
	require.Equal(t, http.StatusOK, first.StatusCode)
	second := refreshWith(t, h, original)
	require.Equal(t, http.StatusOK, second.StatusCode)

	// The grace window is not extended by reuse.
	h.mr.FastForward(DefaultConfig().RefreshGrace + time.Second)
	stale := refreshWith(t, h, original)
	assert.Equal(t, http.StatusUnauthorized, stale.StatusCode)
	for _, c := range stale.Cookies() {
		assert.NotEqual(t, "refresh_token", c.Name, "a stale refresh must not clear the cookie")
	}

	// Tokens issued by the rotations stay valid.
	for _, resp := range []*http.Response{first, second} {
		var rotated string
		for _, c := range resp.Cookies() {
			if c.Name == "refresh_token" {
				rotated = c.Value
			}
		}
		require.NotEmpty(t, rotated)
		assert.Equal(t, http.StatusOK, refreshWith(t, h, rotated).StatusCode)
	}
}

func TestExpireAccessTokens(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("a@b.com", "right-password", "A", goHMS.RoleUser)
	require.NoError(t, err)
	token := h.login(t, "a@b.com", "right-password")

	h.srv.ExpireAccessTokens()

	status, _ := h.call(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterConflict(t *testing.T) {
	h := newHarness(t)
	reg := map[string]string{"email": "new@b.com", "password": "long-enough", "name": "New"}

	status, body := h.call(t, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, status)
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "USER", user["role"])

	status, _ = h.call(t, http.MethodPost, "/auth/register", "", reg)
	assert.Equal(t, http.StatusConflict, status)
}

func TestCRUDAndPagination(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("admin@hms.test", "admin-password", "Admin", goHMS.RoleAdmin)
	require.NoError(t, err)
	token := h.login(t, "admin@hms.test", "admin-password")

	for _, n := range []string{"A1", "A2", "B1"} {
		status, body := h.call(t, http.MethodPost, "/units", token, goHMS.UnitInput{
			UnitNumber: n,
			PropertyID: "p1",
			RentAmount: 100,
			Status:     goHMS.UnitAvailable,
		})
		require.Equal(t, http.StatusCreated, status, body)
	}
	assert.Equal(t, 3, h.srv.Count(goHMS.ResourceUnits))

	status, body := h.call(t, http.MethodGet, "/units?page=2&limit=2", token, nil)
	require.Equal(t, http.StatusOK, status)
	page := body["data"].(map[string]any)
	assert.EqualValues(t, 3, page["total"])
	assert.EqualValues(t, 2, page["totalPages"])
	assert.Len(t, page["items"], 1)

	status, body = h.call(t, http.MethodGet, "/units?unitNumber=B1", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["total"])

	status, body = h.call(t, http.MethodPost, "/properties", token, map[string]any{"title": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"], "title")

	status, _ = h.call(t, http.MethodGet, "/units/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUserRoleIsForbiddenFromMutations(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("u@b.com", "user-password", "U", goHMS.RoleUser)
	require.NoError(t, err)
	token := h.login(t, "u@b.com", "user-password")

	status, _ := h.call(t, http.MethodPost, "/units", token, goHMS.UnitInput{
		UnitNumber: "X",
		PropertyID: "p1",
		Status:     goHMS.UnitAvailable,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.call(t, http.MethodGet, "/tenants", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.call(t, http.MethodGet, "/units", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestKnobs(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.SeedUser("admin@hms.test", "admin-password", "Admin", goHMS.RoleAdmin)
	require.NoError(t, err)
	token := h.login(t, "admin@hms.test", "admin-password")

	h.srv.FailNext(http.MethodGet, "/units", http.StatusServiceUnavailable, 1)

	status, _ := h.call(t, http.MethodGet, "/units", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = h.call(t, http.MethodGet, "/units", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, h.srv.Hits(http.MethodGet, "/units"))

	h.srv.ResetHits()
	assert.Zero(t, h.srv.Hits(http.MethodGet, "/units"))
}
