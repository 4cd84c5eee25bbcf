package goHMS

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.Cache.ListStaleTime != 2*time.Minute || cfg.Cache.DetailStaleTime != 5*time.Minute {
		t.Fatalf("unexpected stale times %v/%v", cfg.Cache.ListStaleTime, cfg.Cache.DetailStaleTime)
	}
	if cfg.Cache.GCTime != 10*time.Minute {
		t.Fatalf("GCTime = %v, want 10m", cfg.Cache.GCTime)
	}
	if cfg.Retry.ReadAttempts != 2 {
		t.Fatalf("ReadAttempts = %d, want 2", cfg.Retry.ReadAttempts)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api/v1" }},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://example.com" }},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }},
		{"path without slash", func(c *Config) { c.API.LoginPath = "auth/login" }},
		{"empty cookie name", func(c *Config) { c.Session.RefreshCookieName = " " }},
		{"unknown default role", func(c *Config) { c.Session.DefaultRole = "OWNER" }},
		{"negative stale time", func(c *Config) { c.Cache.ListStaleTime = -1 }},
		{"gc shorter than detail stale", func(c *Config) { c.Cache.GCTime = time.Minute }},
		{"page size zero", func(c *Config) { c.Cache.DefaultPageSize = 0 }},
		{"page size too large", func(c *Config) { c.Cache.DefaultPageSize = 500 }},
		{"zero attempts", func(c *Config) { c.Retry.ReadAttempts = 0 }},
		{"too many attempts", func(c *Config) { c.Retry.ReadAttempts = 9 }},
		{"inverted intervals", func(c *Config) { c.Retry.MaxInterval = time.Millisecond }},
		{"rate limit without rps", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.RequestsPerSecond = 0
		}},
		{"rate limit without burst", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.Burst = 0
		}},
		{"events without buffer", func(c *Config) {
			c.Events.Enabled = true
			c.Events.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "not a url"
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected Build to fail")
	}
}
