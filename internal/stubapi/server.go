package stubapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/internal/rate"
	"github.com/MrEthical07/goHMS/jwt"
	"github.com/MrEthical07/goHMS/password"
	"github.com/MrEthical07/goHMS/permission"
	"github.com/MrEthical07/goHMS/validate"
)

// Config configures a [Server].
type Config struct {
	// Redis holds refresh tokens and login counters. Required.
	Redis redis.UniversalClient

	// Prefix is the mount point of every route. Defaults to "/api/v1".
	Prefix string

	SigningKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RefreshGrace is how long a rotated refresh token keeps working.
	RefreshGrace time.Duration
	// CookieName and CookieMaxAge describe the refresh cookie.
	CookieName   string
	CookieMaxAge int

	Login rate.Config

	Password password.Params
	Logger   *slog.Logger
}

// DefaultConfig returns a configuration with a fixed development key. Redis
// must still be set.
func DefaultConfig() Config {
	return Config{
		Prefix:       "/api/v1",
		SigningKey:   []byte("stubapi-development-signing-key-0123456789"),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
		RefreshGrace: 10 * time.Second,
		CookieName:   "refresh_token",
		CookieMaxAge: 86400,
		Login:        rate.DefaultConfig(),
		Password:     password.FastParams(),
	}
}

// Server is an http.Handler.
type Server struct {
	cfg    Config
	echo   *echo.Echo
	logger *slog.Logger

	redis     redis.UniversalClient
	limiter   *rate.Limiter
	tokens    *jwt.Manager
	hasher    *password.Hasher
	roles     *permission.RoleManager
	validator *validate.Validator

	// gen is embedded in every access token; bumping it revokes them all.
	gen atomic.Uint32

	usersMu sync.RWMutex
	users   map[string]*account // by email

	properties *table[goHMS.Property]
	buildings  *table[goHMS.Building]
	units      *table[goHMS.Unit]
	leases     *table[goHMS.Lease]
	tenants    *table[goHMS.Tenant]

	knobs knobs
}

type account struct {
	user goHMS.User
	hash string
}

// New wires the routes. It does not listen; mount the Server on an
// http.Server or httptest.Server.
func New(cfg Config) (*Server, error) {
	if cfg.Redis == nil {
		return nil, errors.New("stubapi: redis client is required")
	}
	def := DefaultConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	cfg.Prefix = "/" + strings.Trim(cfg.Prefix, "/")
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = def.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = def.RefreshTTL
	}
	if cfg.RefreshGrace <= 0 {
		cfg.RefreshGrace = def.RefreshGrace
	}
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = def.CookieMaxAge
	}
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = def.SigningKey
	}
	if cfg.Password == (password.Params{}) {
		cfg.Password = def.Password
	}
	if cfg.Login == (rate.Config{}) {
		cfg.Login = def.Login
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.SigningKey,
		Issuer:        "hms-stub",
	})
	if err != nil {
		return nil, fmt.Errorf("stubapi: %w", err)
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("stubapi: %w", err)
	}
	roles, err := permission.NewDefaultRoleManager()
	if err != nil {
		return nil, fmt.Errorf("stubapi: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		redis:      cfg.Redis,
		limiter:    rate.New(cfg.Redis, cfg.Login),
		tokens:     tokens,
		hasher:     hasher,
		roles:      roles,
		validator:  validate.New(),
		users:      make(map[string]*account),
		properties: newTable[goHMS.Property](),
		buildings:  newTable[goHMS.Building](),
		units:      newTable[goHMS.Unit](),
		leases:     newTable[goHMS.Lease](),
		tenants:    newTable[goHMS.Tenant](),
	}
	s.knobs.init()
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Prefix returns the route prefix, e.g. "/api/v1".
func (s *Server) Prefix() string { return s.cfg.Prefix }

func (s *Server) routes() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.RequestID != "" {
				attrs = append(attrs, "request_id", v.RequestID)
			}
			if v.Error != nil {
				s.logger.DebugContext(c.Request().Context(), "stubapi: request failed", append(attrs, "err", v.Error.Error())...)
				return nil
			}
			s.logger.DebugContext(c.Request().Context(), "stubapi: request completed", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(s.knobs.middleware(s.cfg.Prefix))

	api := e.Group(s.cfg.Prefix)

	auth := api.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/register", s.register)
	auth.POST("/refresh", s.refresh)
	auth.POST("/logout", s.logout)
	auth.GET("/me", s.me, s.guard)
	api.GET("/user/me", s.me, s.guard)

	mount(s, api, propertyDef(), s.properties)
	mount(s, api, buildingDef(), s.buildings)
	mount(s, api, unitDef(), s.units)
	mount(s, api, leaseDef(s), s.leases)
	mount(s, api, tenantDef(), s.tenants)

	s.echo = e
}

type successReply struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorReply struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, successReply{Status: "success", Data: data})
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := "internal error"
	var fields map[string]string

	var fe validate.FieldErrors
	var he *echo.HTTPError
	switch {
	case errors.As(err, &fe):
		status = http.StatusUnprocessableEntity
		msg = "validation failed"
		fields = fe
	case errors.As(err, &he):
		status = he.Code
		msg = fmt.Sprint(he.Message)
	default:
		s.logger.Error("stubapi: unhandled error", "err", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, errorReply{Status: "error", Message: msg, Errors: fields})
}
