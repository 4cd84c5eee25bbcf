package goHMS

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the complete client configuration. Start from [DefaultConfig] and
// override fields; [Builder.Build] validates it.
type Config struct {
	API       APIConfig
	Session   SessionConfig
	Cache     CacheConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
	Metrics   MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the REST API and its auth endpoints. Paths are relative to BaseURL.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	LoginPath    string
	RegisterPath string
	LogoutPath   string
	MePath       string
	RefreshPath  string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls how credentials are held.
type SessionConfig struct {
	// RefreshCookieName is the cookie the API sets on login and reads on refresh.
	RefreshCookieName string
	// DefaultRole is sent on register when the caller leaves Role empty.
	DefaultRole Role
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig sets staleness windows for cached reads.
type CacheConfig struct {
	ListStaleTime        time.Duration
	DetailStaleTime      time.Duration
	GCTime               time.Duration
	JanitorInterval      time.Duration
	StaleWhileRevalidate bool
	DefaultPageSize      int
}

/*
====================================
RETRY CONFIG
====================================
*/

// RetryConfig bounds read retries. Mutations are never retried.
type RetryConfig struct {
	// ReadAttempts is the total number of attempts for a read, including the first.
	ReadAttempts    uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles outgoing requests with a token bucket.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls asynchronous delivery of session events to an [EventSink].
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the request latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration of a local development API.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:      "http://localhost:3000/api/v1",
			Timeout:      30 * time.Second,
			UserAgent:    "goHMS",
			LoginPath:    "/auth/login",
			RegisterPath: "/auth/register",
			LogoutPath:   "/auth/logout",
			MePath:       "/auth/me",
			RefreshPath:  "/auth/refresh",
		},
		Session: SessionConfig{
			RefreshCookieName: "refresh_token",
			DefaultRole:       RoleUser,
		},
		Cache: CacheConfig{
			ListStaleTime:        2 * time.Minute,
			DetailStaleTime:      5 * time.Minute,
			GCTime:               10 * time.Minute,
			JanitorInterval:      time.Minute,
			StaleWhileRevalidate: true,
			DefaultPageSize:      20,
		},
		Retry: RetryConfig{
			ReadAttempts:    2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	for name, p := range map[string]string{
		"LoginPath":    c.API.LoginPath,
		"RegisterPath": c.API.RegisterPath,
		"LogoutPath":   c.API.LogoutPath,
		"MePath":       c.API.MePath,
		"RefreshPath":  c.API.RefreshPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("API " + name + " must start with /")
		}
	}

	// Session
	if strings.TrimSpace(c.Session.RefreshCookieName) == "" {
		return errors.New("Session RefreshCookieName must be set")
	}
	if c.Session.DefaultRole != RoleAdmin && c.Session.DefaultRole != RoleUser {
		return errors.New("Session DefaultRole must be ADMIN or USER")
	}

	// Cache
	if c.Cache.ListStaleTime < 0 || c.Cache.DetailStaleTime < 0 {
		return errors.New("Cache stale times must be >= 0")
	}
	if c.Cache.GCTime < 0 || c.Cache.JanitorInterval < 0 {
		return errors.New("Cache GCTime and JanitorInterval must be >= 0")
	}
	if c.Cache.GCTime > 0 && c.Cache.GCTime < c.Cache.DetailStaleTime {
		return errors.New("Cache GCTime must be >= DetailStaleTime")
	}
	if c.Cache.DefaultPageSize <= 0 || c.Cache.DefaultPageSize > 100 {
		return errors.New("Cache DefaultPageSize must be in 1..100")
	}

	// Retry
	if c.Retry.ReadAttempts < 1 || c.Retry.ReadAttempts > 5 {
		return errors.New("Retry ReadAttempts must be in 1..5")
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return errors.New("Retry intervals must be > 0 and MaxInterval >= InitialInterval")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return errors.New("RateLimit RequestsPerSecond must be > 0")
		}
		if c.RateLimit.Burst < 1 {
			return errors.New("RateLimit Burst must be >= 1")
		}
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0")
	}

	return nil
}
