package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginLimitAfterMaxFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLoginAttempts = 3
	l, _ := newTestLimiter(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "a@b.com", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d blocked early: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "a@b.com", "10.0.0.1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	if err := l.CheckLogin(ctx, "a@b.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	// Same IP, other account: the IP window is exhausted too.
	if err := l.CheckLogin(ctx, "c@d.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP limit, got %v", err)
	}

	n, err := l.LoginAttempts(ctx, "a@b.com")
	if err != nil || n != 3 {
		t.Fatalf("attempts = %d, %v", n, err)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLoginAttempts = 1
	cfg.LoginCooldown = time.Minute
	l, mr := newTestLimiter(t, cfg)
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a@b.com", "")
	if err := l.CheckLogin(ctx, "a@b.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckLogin(ctx, "a@b.com", ""); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestResetLogin(t *testing.T) {
	l, _ := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a@b.com", "10.0.0.2")
	if err := l.ResetLogin(ctx, "a@b.com", "10.0.0.2"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "a@b.com"); n != 0 {
		t.Fatalf("attempts after reset = %d", n)
	}
}

func TestRefreshLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRefreshAttempts = 2
	l, _ := newTestLimiter(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "tok"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "tok"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRedisDownIsWrapped(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	l := New(rdb, DefaultConfig())

	err := l.CheckLogin(context.Background(), "a@b.com", "")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(1, 1)
	if !th.Allow() {
		t.Fatalf("first token should be available")
	}
	if th.Allow() {
		t.Fatalf("bucket should be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := th.Wait(ctx); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for a wait past the deadline, got %v", err)
	}

	unlimited := NewThrottle(0, 0)
	for i := 0; i < 100; i++ {
		if err := unlimited.Wait(context.Background()); err != nil {
			t.Fatalf("unlimited wait: %v", err)
		}
	}
}
