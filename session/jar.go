package session

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RefreshJar is an [http.CookieJar] for a client that talks to a single API origin.
// It keeps cookies by name, honors path scoping and expiry, and can export the
// refresh cookie for persistence.
type RefreshJar struct {
	refreshName string
	now         func() time.Time

	mu      sync.Mutex
	cookies map[string]*jarCookie
}

type jarCookie struct {
	name    string
	value   string
	path    string
	expires time.Time // zero for session cookies
	secure  bool
}

// NewRefreshJar creates a jar that treats refreshName as the refresh-token cookie.
func NewRefreshJar(refreshName string) *RefreshJar {
	return &RefreshJar{
		refreshName: refreshName,
		now:         time.Now,
		cookies:     make(map[string]*jarCookie),
	}
}

// SetCookies implements [http.CookieJar].
func (j *RefreshJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}

		var expires time.Time
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, c.Name)
			continue
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				delete(j.cookies, c.Name)
				continue
			}
			expires = c.Expires
		}

		path := c.Path
		if path == "" || path[0] != '/' {
			path = defaultPath(u)
		}

		j.cookies[c.Name] = &jarCookie{
			name:    c.Name,
			value:   c.Value,
			path:    path,
			expires: expires,
			secure:  c.Secure,
		}
	}
}

// Cookies implements [http.CookieJar].
func (j *RefreshJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}

	var out []*http.Cookie
	for name, c := range j.cookies {
		if !c.expires.IsZero() && !c.expires.After(now) {
			delete(j.cookies, name)
			continue
		}
		if c.secure && u.Scheme != "https" {
			continue
		}
		if !pathMatch(c.path, reqPath) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.name, Value: c.value})
	}
	return out
}

// Refresh returns the live refresh cookie, or nil.
func (j *RefreshJar) Refresh() *RefreshCookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.cookies[j.refreshName]
	if !ok {
		return nil
	}
	if !c.expires.IsZero() && !c.expires.After(j.now()) {
		delete(j.cookies, j.refreshName)
		return nil
	}

	rc := &RefreshCookie{Name: c.name, Value: c.value, Path: c.path}
	if !c.expires.IsZero() {
		rc.Expires = c.expires.Unix()
	}
	return rc
}

// Restore loads a persisted refresh cookie. Expired cookies are ignored.
func (j *RefreshJar) Restore(rc *RefreshCookie) {
	if rc == nil || rc.Value == "" || rc.Expired(j.now()) {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	c := &jarCookie{name: rc.Name, value: rc.Value, path: rc.Path}
	if c.name == "" {
		c.name = j.refreshName
	}
	if c.path == "" {
		c.path = "/"
	}
	if rc.Expires != 0 {
		c.expires = time.Unix(rc.Expires, 0)
	}
	j.cookies[c.name] = c
}

// Clear drops every cookie.
func (j *RefreshJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	clear(j.cookies)
}

func defaultPath(u *url.URL) string {
	p := u.Path
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func pathMatch(cookiePath, reqPath string) bool {
	if cookiePath == reqPath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}
