package session

import "time"

// RefreshCookie is the persisted form of the refresh-token cookie.
type RefreshCookie struct {
	Name    string
	Value   string
	Path    string
	Expires int64 // unix seconds, 0 for session cookies
}

// Expired reports whether the cookie has a fixed expiry at or before now.
func (c *RefreshCookie) Expired(now time.Time) bool {
	if c == nil {
		return true
	}
	return c.Expires != 0 && c.Expires <= now.Unix()
}

// State is the credential set persisted across restarts. A zero State means no
// credentials are stored.
type State struct {
	SchemaVersion uint8

	AccessToken string
	Refresh     *RefreshCookie
	UserID      string

	SavedAt int64
}

// Empty reports whether s carries neither an access token nor a refresh cookie.
func (s *State) Empty() bool {
	return s == nil || (s.AccessToken == "" && s.Refresh == nil)
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	if s.Refresh != nil {
		rc := *s.Refresh
		out.Refresh = &rc
	}
	return &out
}
