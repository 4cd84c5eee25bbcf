package stubapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	goHMS "github.com/MrEthical07/goHMS"
)

type failure struct {
	status    int
	remaining int
}

// knobs are the test controls. Routes are keyed "METHOD /path" with the
// prefix stripped, e.g. "GET /properties".
type knobs struct {
	mu       sync.Mutex
	hits     map[string]int
	failures map[string]*failure
	latency  atomic.Int64
}

func (k *knobs) init() {
	k.hits = make(map[string]int)
	k.failures = make(map[string]*failure)
}

func (k *knobs) middleware(prefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			key := r.Method + " " + strings.TrimPrefix(r.URL.Path, prefix)

			k.mu.Lock()
			k.hits[key]++
			status := 0
			if f := k.failures[key]; f != nil && f.remaining > 0 {
				f.remaining--
				status = f.status
			}
			k.mu.Unlock()

			if d := time.Duration(k.latency.Load()); d > 0 && r.Method == http.MethodGet {
				t := time.NewTimer(d)
				select {
				case <-t.C:
				case <-r.Context().Done():
					t.Stop()
					return r.Context().Err()
				}
			}

			if status != 0 {
				return echo.NewHTTPError(status, http.StatusText(status))
			}
			return next(c)
		}
	}
}

// Hits returns how many requests reached method and path, e.g.
// Hits("GET", "/properties").
func (s *Server) Hits(method, path string) int {
	s.knobs.mu.Lock()
	defer s.knobs.mu.Unlock()
	return s.knobs.hits[method+" "+path]
}

// ResetHits zeroes every request counter.
func (s *Server) ResetHits() {
	s.knobs.mu.Lock()
	defer s.knobs.mu.Unlock()
	clear(s.knobs.hits)
}

// FailNext makes the next n requests to method and path answer status.
func (s *Server) FailNext(method, path string, status, n int) {
	s.knobs.mu.Lock()
	defer s.knobs.mu.Unlock()
	s.knobs.failures[method+" "+path] = &failure{status: status, remaining: n}
}

// SetLatency delays every GET by d.
func (s *Server) SetLatency(d time.Duration) {
	s.knobs.latency.Store(int64(d))
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.gen.Add(1)
}

// RevokeRefreshTokens deletes every stored refresh token.
func (s *Server) RevokeRefreshTokens(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, refreshKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.redis.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Count returns the number of stored rows of resource.
func (s *Server) Count(resource string) int {
	switch resource {
	case goHMS.ResourceProperties:
		return s.properties.len()
	case goHMS.ResourceBuildings:
		return s.buildings.len()
	case goHMS.ResourceUnits:
		return s.units.len()
	case goHMS.ResourceLeases:
		return s.leases.len()
	case goHMS.ResourceTenants:
		return s.tenants.len()
	}
	return 0
}
