package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when a Redis round-trip fails.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrStateCorrupt is returned when a persisted blob cannot be decoded.
var ErrStateCorrupt = errors.New("persisted session state corrupt")

// TokenStore persists the client credential [State].
//
// Load returns (nil, nil) when nothing is stored. Clear is idempotent.
type TokenStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
	Clear(ctx context.Context) error
}

const minStateTTL = time.Second

// RedisStore keeps one credential blob per profile under "<prefix>:cred:<profile>".
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	profile    string
	defaultTTL time.Duration
}

// NewRedisStore creates a [RedisStore]. defaultTTL applies when the state carries no
// refresh cookie expiry; zero means no expiry.
func NewRedisStore(client redis.UniversalClient, prefix, profile string, defaultTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "hms"
	}
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		redis:      client,
		prefix:     prefix,
		profile:    profile,
		defaultTTL: defaultTTL,
	}
}

func (s *RedisStore) key() string {
	return s.prefix + ":cred:" + s.profile
}

// Load reads and decodes the stored state.
func (s *RedisStore) Load(ctx context.Context) (*State, error) {
	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	st, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	return st, nil
}

// Save encodes and writes st. The key expires with the refresh cookie.
func (s *RedisStore) Save(ctx context.Context, st *State) error {
	if st.Empty() {
		return s.Clear(ctx)
	}

	data, err := Encode(st)
	if err != nil {
		return err
	}

	ttl := s.ttlFor(st, time.Now())
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(), data, ttl)
		pipe.HSet(ctx, s.prefix+":profiles", s.profile, st.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear removes the stored state and its profile index entry.
func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key())
		pipe.HDel(ctx, s.prefix+":profiles", s.profile)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Profiles lists stored profiles and the user id each belongs to.
func (s *RedisStore) Profiles(ctx context.Context) (map[string]string, error) {
	out, err := s.redis.HGetAll(ctx, s.prefix+":profiles").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return out, nil
}

func (s *RedisStore) ttlFor(st *State, now time.Time) time.Duration {
	if st.Refresh != nil && st.Refresh.Expires != 0 {
		ttl := time.Unix(st.Refresh.Expires, 0).Sub(now)
		if ttl < minStateTTL {
			ttl = minStateTTL
		}
		return ttl
	}
	return s.defaultTTL
}
