package session

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestJarPathScoping(t *testing.T) {
	jar := NewRefreshJar("refresh_token")
	jar.SetCookies(mustURL(t, "http://api.test/api/v1/auth/login"), []*http.Cookie{
		{Name: "refresh_token", Value: "r1", Path: "/api/v1/auth"},
	})

	if got := jar.Cookies(mustURL(t, "http://api.test/api/v1/auth/refresh")); len(got) != 1 || got[0].Value != "r1" {
		t.Fatalf("expected cookie on refresh path, got %v", got)
	}
	if got := jar.Cookies(mustURL(t, "http://api.test/api/v1/properties")); len(got) != 0 {
		t.Fatalf("expected no cookie outside path, got %v", got)
	}
	if got := jar.Cookies(mustURL(t, "http://api.test/api/v1/authx")); len(got) != 0 {
		t.Fatalf("expected no cookie on sibling prefix, got %v", got)
	}
}

func TestJarDefaultPath(t *testing.T) {
	jar := NewRefreshJar("refresh_token")
	jar.SetCookies(mustURL(t, "http://api.test/api/v1/auth/login"), []*http.Cookie{
		{Name: "refresh_token", Value: "r1"},
	})
	rc := jar.Refresh()
	if rc == nil || rc.Path != "/api/v1/auth" {
		t.Fatalf("expected default path /api/v1/auth, got %+v", rc)
	}
}

func TestJarMaxAgeAndExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	jar := NewRefreshJar("refresh_token")
	jar.now = func() time.Time { return now }

	u := mustURL(t, "http://api.test/")
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/", MaxAge: 60}})

	rc := jar.Refresh()
	if rc == nil || rc.Expires != now.Add(time.Minute).Unix() {
		t.Fatalf("expected expiry from max-age, got %+v", rc)
	}

	now = now.Add(2 * time.Minute)
	if got := jar.Cookies(u); len(got) != 0 {
		t.Fatalf("expected expired cookie dropped, got %v", got)
	}
	if jar.Refresh() != nil {
		t.Fatal("expected no refresh cookie after expiry")
	}
}

func TestJarDeletionByNegativeMaxAge(t *testing.T) {
	jar := NewRefreshJar("refresh_token")
	u := mustURL(t, "http://api.test/")
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Path: "/", MaxAge: -1}})

	if jar.Refresh() != nil {
		t.Fatal("expected cookie deleted")
	}
}

func TestJarSecureOnlyOverHTTPS(t *testing.T) {
	jar := NewRefreshJar("refresh_token")
	jar.SetCookies(mustURL(t, "https://api.test/"), []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/", Secure: true}})

	if got := jar.Cookies(mustURL(t, "http://api.test/")); len(got) != 0 {
		t.Fatalf("secure cookie leaked over http: %v", got)
	}
	if got := jar.Cookies(mustURL(t, "https://api.test/")); len(got) != 1 {
		t.Fatalf("expected secure cookie over https, got %v", got)
	}
}

func TestJarRestoreAndClear(t *testing.T) {
	jar := NewRefreshJar("refresh_token")
	jar.Restore(&RefreshCookie{Value: "r9", Expires: time.Now().Add(time.Hour).Unix()})

	rc := jar.Refresh()
	if rc == nil || rc.Value != "r9" || rc.Name != "refresh_token" || rc.Path != "/" {
		t.Fatalf("unexpected restored cookie %+v", rc)
	}

	jar.Restore(&RefreshCookie{Name: "other", Value: "x", Expires: time.Now().Add(-time.Hour).Unix()})
	if got := jar.Cookies(mustURL(t, "http://api.test/")); len(got) != 1 {
		t.Fatalf("expired restore must be ignored, got %v", got)
	}

	jar.Clear()
	if jar.Refresh() != nil {
		t.Fatal("expected empty jar after clear")
	}
}
