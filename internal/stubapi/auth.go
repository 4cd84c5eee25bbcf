package stubapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/internal/rate"
	"github.com/MrEthical07/goHMS/jwt"
)

const (
	refreshKeyPrefix = "hms:rt:"
	// retiredKeyPrefix marks a refresh token that has already been rotated, so
	// its grace window is started once and never extended.
	retiredKeyPrefix = "hms:rtx:"
)

type authReply struct {
	User        goHMS.User `json:"user"`
	AccessToken string     `json:"accessToken"`
}

type refreshReply struct {
	Token string `json:"token"`
}

// SeedUser creates an account directly, bypassing validation and throttling.
func (s *Server) SeedUser(email, pass, name string, role goHMS.Role) (goHMS.User, error) {
	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return goHMS.User{}, err
	}

	now := time.Now().UTC()
	user := goHMS.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(email),
		Name:      name,
		Role:      role,
		Provider:  "local",
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return goHMS.User{}, errors.New("stubapi: user already exists")
	}
	s.users[user.Email] = &account{user: user, hash: hash}
	return user, nil
}

func (s *Server) login(c echo.Context) error {
	var in goHMS.Credentials
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := s.validator.Struct(&in); err != nil {
		return err
	}

	ctx := c.Request().Context()
	email := strings.ToLower(in.Email)
	ip := c.RealIP()

	if err := s.limiter.CheckLogin(ctx, email, ip); err != nil {
		return limiterError(err)
	}

	s.usersMu.RLock()
	acct := s.users[email]
	s.usersMu.RUnlock()

	if acct == nil || !s.passwordMatches(in.Password, acct.hash) {
		if err := s.limiter.IncrementLogin(ctx, email, ip); err != nil {
			s.logger.WarnContext(ctx, "stubapi: login counter", "err", err)
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	_ = s.limiter.ResetLogin(ctx, email, ip)

	return s.issueSession(c, http.StatusOK, acct.user)
}

func (s *Server) register(c echo.Context) error {
	var in goHMS.Registration
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if in.Role == "" {
		in.Role = goHMS.RoleUser
	}
	if err := s.validator.Struct(&in); err != nil {
		return err
	}

	user, err := s.SeedUser(in.Email, in.Password, in.Name, in.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "User already exists")
	}
	return s.issueSession(c, http.StatusCreated, user)
}

func (s *Server) refresh(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(s.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token not found")
	}
	if err := s.limiter.CheckRefresh(ctx, cookie.Value); err != nil {
		return limiterError(err)
	}

	// A miss leaves the cookie alone: a concurrent refresh may already have
	// replaced it with a valid one.
	uid, err := s.redis.Get(ctx, refreshKeyPrefix+cookie.Value).Result()
	if errors.Is(err, redis.Nil) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "token store unavailable")
	}
	if err := s.retireRefresh(ctx, cookie.Value); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "token store unavailable")
	}

	user, found := s.userByID(uid)
	if !found {
		s.clearCookie(c)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}

	access, err := s.tokens.CreateAccess(user.ID, user.Email, string(user.Role), s.gen.Load(), 0)
	if err != nil {
		return err
	}
	if err := s.rotateRefresh(ctx, c, user.ID); err != nil {
		return err
	}
	return ok(c, http.StatusOK, refreshReply{Token: access})
}

func (s *Server) logout(c echo.Context) error {
	if cookie, err := c.Cookie(s.cfg.CookieName); err == nil && cookie.Value != "" {
		if err := s.redis.Del(c.Request().Context(), refreshKeyPrefix+cookie.Value, retiredKeyPrefix+cookie.Value).Err(); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "token store unavailable")
		}
	}
	s.clearCookie(c)
	return ok(c, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) me(c echo.Context) error {
	claims := claimsFrom(c)
	user, found := s.userByID(claims.UID)
	if !found {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	return ok(c, http.StatusOK, user)
}

func (s *Server) issueSession(c echo.Context, status int, user goHMS.User) error {
	access, err := s.tokens.CreateAccess(user.ID, user.Email, string(user.Role), s.gen.Load(), 0)
	if err != nil {
		return err
	}
	if err := s.rotateRefresh(c.Request().Context(), c, user.ID); err != nil {
		return err
	}
	return ok(c, status, authReply{User: user, AccessToken: access})
}

func (s *Server) rotateRefresh(ctx context.Context, c echo.Context, uid string) error {
	token := uuid.NewString()
	if err := s.redis.Set(ctx, refreshKeyPrefix+token, uid, s.cfg.RefreshTTL).Err(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "token store unavailable")
	}

	c.SetCookie(&http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   s.cfg.CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// retireRefresh shortens a rotated token's life to the grace window. Requests
// that raced with the rotation can still exchange it until then.
func (s *Server) retireRefresh(ctx context.Context, token string) error {
	first, err := s.redis.SetNX(ctx, retiredKeyPrefix+token, 1, s.cfg.RefreshGrace).Result()
	if err != nil || !first {
		return err
	}
	return s.redis.Expire(ctx, refreshKeyPrefix+token, s.cfg.RefreshGrace).Err()
}

func (s *Server) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.cfg.CookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) passwordMatches(pass, hash string) bool {
	ok, err := s.hasher.Verify(pass, hash)
	return err == nil && ok
}

func (s *Server) userByID(id string) (goHMS.User, bool) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	for _, a := range s.users {
		if a.user.ID == id {
			return a.user, true
		}
	}
	return goHMS.User{}, false
}

func limiterError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts, try again later")
	}
	return echo.NewHTTPError(http.StatusServiceUnavailable, "rate limiter unavailable")
}

/*
====================================
GUARD
====================================
*/

const claimsKey = "stubapi.claims"

// guard rejects requests without a valid bearer token from the current
// generation.
func (s *Server) guard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, found := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !found {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
		}

		claims, err := s.tokens.ParseAccess(token)
		if err != nil || claims.Gen != s.gen.Load() {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, token failed")
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

func claimsFrom(c echo.Context) *jwt.AccessClaims {
	claims, _ := c.Get(claimsKey).(*jwt.AccessClaims)
	if claims == nil {
		return &jwt.AccessClaims{}
	}
	return claims
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
