package goHMS

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goHMS/cache"
	"github.com/MrEthical07/goHMS/internal/rate"
	"github.com/MrEthical07/goHMS/internal/transport"
	"github.com/MrEthical07/goHMS/permission"
	"github.com/MrEthical07/goHMS/session"
	"github.com/MrEthical07/goHMS/validate"
)

// Builder assembles a [Client]. Configure it once and call Build once.
type Builder struct {
	config Config

	store      session.TokenStore
	httpClient *http.Client
	logger     *slog.Logger
	eventSink  EventSink
	roles      *permission.RoleManager

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL overrides Config.API.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithTokenStore sets where credentials are persisted. Defaults to an in-memory store.
func (b *Builder) WithTokenStore(store session.TokenStore) *Builder {
	b.store = store
	return b
}

// WithHTTPClient supplies the base transport and timeout. Its Jar is replaced.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithEventSink enables event delivery to sink.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = sink != nil
	return b
}

// WithRoleManager replaces the built-in permission table.
func (b *Builder) WithRoleManager(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client. It performs no I/O.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.API.BaseURL, "/"))
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	store := b.store
	if store == nil {
		store = session.NewMemoryStore()
	}

	// -------- PERMISSIONS --------
	roles := b.roles
	if roles == nil {
		roles, err = permission.NewDefaultRoleManager()
		if err != nil {
			return nil, err
		}
	}
	if roles.Count() == 0 {
		return nil, errors.New("role manager has no roles")
	}

	c := &Client{
		config:    cfg,
		logger:    logger,
		baseURL:   baseURL,
		jar:       session.NewRefreshJar(cfg.Session.RefreshCookieName),
		store:     store,
		roles:     roles,
		metrics:   NewMetrics(cfg.Metrics),
		validator: validate.New(),
		observers: make(map[uint64]func()),
	}

	// -------- EVENTS --------
	c.events = newEventDispatcher(cfg.Events, b.eventSink)

	// -------- CACHE --------
	c.cache = cache.New(cache.Config{
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
		GCAfter:              cfg.Cache.GCTime,
		JanitorInterval:      cfg.Cache.JanitorInterval,
	}, cache.WithLogger(logger), cache.WithObserver(c.observeCache))

	// -------- TRANSPORT --------
	var base http.RoundTripper = http.DefaultTransport
	timeout := cfg.API.Timeout
	if b.httpClient != nil {
		if b.httpClient.Transport != nil {
			base = b.httpClient.Transport
		}
		if b.httpClient.Timeout > 0 {
			timeout = b.httpClient.Timeout
		}
	}

	var rt http.RoundTripper = &transport.Bearer{
		Base: &transport.Logged{
			Base:    base,
			Logger:  logger,
			Observe: func(d time.Duration) { c.metrics.Observe(MetricRequestLatency, d) },
		},
		Token:    c.accessToken,
		Refresh:  c.refresh,
		OnReplay: func(*http.Request) { c.metricInc(MetricRetryAfterRefresh) },
	}
	rt = &transport.RequestID{Base: rt}
	if cfg.RateLimit.Enabled {
		rt = &transport.Throttled{
			Base:      rt,
			Throttle:  rate.NewThrottle(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
			OnLimited: func() { c.metricInc(MetricRateLimited) },
		}
	}

	c.http = &http.Client{
		Transport: rt,
		Jar:       c.jar,
		Timeout:   timeout,
	}

	// -------- RESOURCES --------
	c.properties = newCollection[Property, PropertyInput](c, ResourceProperties)
	c.buildings = newCollection[Building, BuildingInput](c, ResourceBuildings)
	c.units = newCollection[Unit, UnitInput](c, ResourceUnits)
	c.leases = newCollection[Lease, LeaseInput](c, ResourceLeases)
	c.tenants = newCollection[Tenant, TenantInput](c, ResourceTenants)

	b.built = true
	return c, nil
}
