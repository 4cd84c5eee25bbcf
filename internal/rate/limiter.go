package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds fixed-window tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	EnableRefreshThrottle bool
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

// DefaultConfig is five failed logins per 15 minutes and twenty refreshes per minute.
func DefaultConfig() Config {
	return Config{
		EnableIPThrottle:      true,
		EnableRefreshThrottle: true,
		MaxLoginAttempts:      5,
		LoginCooldown:         15 * time.Minute,
		MaxRefreshAttempts:    20,
		RefreshCooldown:       time.Minute,
	}
}

// Limiter enforces per-email and per-IP login limits and a per-token refresh
// limit using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns [ErrRateLimited] once the email or IP has used its
// failed-login budget for the current window.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if err := l.checkCounter(ctx, loginKey(email), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}
	return nil
}

// IncrementLogin records a failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	if _, err := l.incrementWithTTL(ctx, loginKey(email), l.config.LoginCooldown); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldown); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	keys := []string{loginKey(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one refresh for tokenID and rejects it past the window budget.
func (l *Limiter) CheckRefresh(ctx context.Context, tokenID string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, refreshKey(tokenID), l.config.RefreshCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// LoginAttempts returns the failed-login count for email. Missing keys are zero.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set by the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func loginKey(email string) string   { return "hl:" + email }
func loginIPKey(ip string) string    { return "hli:" + ip }
func refreshKey(token string) string { return "hr:" + token }
