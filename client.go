package goHMS

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goHMS/cache"
	"github.com/MrEthical07/goHMS/internal/transport"
	"github.com/MrEthical07/goHMS/permission"
	"github.com/MrEthical07/goHMS/session"
	"github.com/MrEthical07/goHMS/validate"
)

// Client is a session-aware API client. It is safe for concurrent use.
//
// The session (access token, user, refresh cookie) has a single writer: the
// session methods in this package. Everything else reads it.
type Client struct {
	config    Config
	logger    *slog.Logger
	baseURL   *url.URL
	http      *http.Client
	jar       *session.RefreshJar
	store     session.TokenStore
	roles     *permission.RoleManager
	cache     *cache.Cache
	events    *eventDispatcher
	metrics   *Metrics
	validator *validate.Validator

	mu      sync.RWMutex
	token   string
	user    *User
	loading int
	// epoch advances on every login, register and clear so a refresh that
	// started under an older session cannot install its token.
	epoch uint64

	observersMu  sync.Mutex
	observers    map[uint64]func()
	nextObserver uint64

	properties *Collection[Property, PropertyInput]
	buildings  *Collection[Building, BuildingInput]
	units      *Collection[Unit, UnitInput]
	leases     *Collection[Lease, LeaseInput]
	tenants    *Collection[Tenant, TenantInput]

	closed atomic.Bool
}

// Properties returns the properties collection.
func (c *Client) Properties() *Collection[Property, PropertyInput] { return c.properties }

// Buildings returns the buildings collection.
func (c *Client) Buildings() *Collection[Building, BuildingInput] { return c.buildings }

// Units returns the units collection.
func (c *Client) Units() *Collection[Unit, UnitInput] { return c.units }

// Leases returns the leases collection.
func (c *Client) Leases() *Collection[Lease, LeaseInput] { return c.leases }

// Tenants returns the tenants collection.
func (c *Client) Tenants() *Collection[Tenant, TenantInput] { return c.tenants }

// Config returns the validated configuration.
func (c *Client) Config() Config { return c.config }

// Close stops background work and delivers buffered events. The session is
// left as is; call [Client.Logout] first to end it.
func (c *Client) Close() {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cache.Close()
	c.events.Close()
	c.http.CloseIdleConnections()
}

// EventsDropped returns the number of events dropped by a full dispatcher buffer.
func (c *Client) EventsDropped() uint64 {
	if c == nil || c.events == nil {
		return 0
	}
	return c.events.Dropped()
}

// EventsDroppedByType breaks EventsDropped down by event type. Logout events
// are never dropped.
func (c *Client) EventsDroppedByType() map[EventType]uint64 {
	if c == nil {
		return map[EventType]uint64{}
	}
	return c.events.DroppedByType()
}

// MetricsSnapshot copies the client metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// CacheStats reports cache counters regardless of whether metrics are enabled.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) observeCache(ev cache.Event, _ cache.Key) {
	switch ev {
	case cache.EventHit:
		c.metricInc(MetricCacheHit)
	case cache.EventMiss:
		c.metricInc(MetricCacheMiss)
	case cache.EventStaleServed:
		c.metricInc(MetricCacheStaleServed)
	case cache.EventCoalesced:
		c.metricInc(MetricCacheCoalesced)
	case cache.EventInvalidated:
		c.metricInc(MetricCacheInvalidation)
	case cache.EventEvicted:
		c.metricInc(MetricCacheEviction)
	}
}

func (c *Client) emit(ctx context.Context, typ EventType, userID string, err error, metadata map[string]string) {
	if c.events == nil {
		return
	}
	ev := Event{
		Timestamp: time.Now().UTC(),
		Type:      typ,
		UserID:    userID,
		RequestID: transport.RequestIDFromContext(ctx),
		Success:   err == nil,
		Metadata:  metadata,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.events.Emit(ctx, ev)
}

func (c *Client) checkOpen() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}
