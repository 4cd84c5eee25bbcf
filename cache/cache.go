package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

var errUnexpectedType = errors.New("cache: unexpected value type")

// Config tunes a [Cache].
type Config struct {
	StaleWhileRevalidate bool
	GCAfter              time.Duration
	JanitorInterval      time.Duration
}

// Event is reported to the optional observer.
type Event int

const (
	EventHit Event = iota
	EventMiss
	EventStaleServed
	EventCoalesced
	EventInvalidated
	EventEvicted
)

// State describes an entry as seen by the next Get.
type State int

const (
	StateMissing State = iota
	StateFresh
	StateStale
	StateInvalidated
)

// FetchFunc loads the value for a key. The context is detached from the caller's
// cancellation so an abandoned fetch still completes and is stored.
type FetchFunc func(ctx context.Context) (any, error)

type stamp struct {
	epoch uint64
	gen   uint64
}

type entry struct {
	key        Key
	value      any
	fetchedAt  time.Time
	lastAccess time.Time
	stamp      stamp
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
	observe func(Event, Key)

	mu      sync.Mutex
	entries map[string]*entry
	gens    map[string]uint64
	epoch   uint64
	group   singleflight.Group

	hits          atomic.Uint64
	misses        atomic.Uint64
	staleServed   atomic.Uint64
	coalesced     atomic.Uint64
	invalidations atomic.Uint64
	evictions     atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option customizes a [Cache].
type Option func(*Cache)

// WithObserver registers fn for every cache event.
func WithObserver(fn func(Event, Key)) Option {
	return func(c *Cache) { c.observe = fn }
}

// WithLogger sets the logger used for background revalidation failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache and starts its janitor when GCAfter and JanitorInterval are positive.
func New(cfg Config, opts ...Option) *Cache {
	c := &Cache{
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
		gens:    make(map[string]uint64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.GCAfter > 0 && cfg.JanitorInterval > 0 {
		c.wg.Add(1)
		go c.janitor()
	}
	return c
}

// Get returns the value for k, fetching it when missing, invalidated, or stale.
func (c *Cache) Get(ctx context.Context, k Key, staleAfter time.Duration, fetch FetchFunc) (any, error) {
	ks := k.String()

	c.mu.Lock()
	now := c.now()
	st := c.stampLocked(k)
	if e, ok := c.entries[ks]; ok && e.stamp == st {
		e.lastAccess = now
		if now.Sub(e.fetchedAt) < staleAfter {
			c.mu.Unlock()
			c.emit(EventHit, k)
			return e.value, nil
		}
		if c.cfg.StaleWhileRevalidate {
			v := e.value
			ch, _ := c.startLocked(ks, k, st, fetch, context.WithoutCancel(ctx))
			c.mu.Unlock()
			c.emit(EventStaleServed, k)
			go c.logRevalidation(k, ch)
			return v, nil
		}
	}
	ch, ran := c.startLocked(ks, k, st, fetch, context.WithoutCancel(ctx))
	c.mu.Unlock()

	select {
	case res := <-ch:
		if ran.Load() {
			c.emit(EventMiss, k)
		} else {
			c.emit(EventCoalesced, k)
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) startLocked(ks string, k Key, st stamp, fetch FetchFunc, fctx context.Context) (<-chan singleflight.Result, *atomic.Bool) {
	ran := &atomic.Bool{}
	fk := ks + "#" + strconv.FormatUint(st.epoch, 10) + "." + strconv.FormatUint(st.gen, 10)
	ch := c.group.DoChan(fk, func() (any, error) {
		ran.Store(true)
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.stampLocked(k) == st {
			now := c.now()
			c.entries[ks] = &entry{key: k, value: v, fetchedAt: now, lastAccess: now, stamp: st}
		}
		c.mu.Unlock()
		return v, nil
	})
	return ch, ran
}

func (c *Cache) logRevalidation(k Key, ch <-chan singleflight.Result) {
	res := <-ch
	if res.Err != nil {
		c.logger.Debug("background revalidation failed", "key", k.String(), "error", res.Err)
	}
}

// stampLocked returns the generation k currently belongs to. Lists of a resource share
// one generation; each detail key has its own.
func (c *Cache) stampLocked(k Key) stamp {
	return stamp{epoch: c.epoch, gen: c.gens[genScope(k)]}
}

func genScope(k Key) string {
	if k.Kind == KindList {
		return k.Resource + "|" + string(KindList)
	}
	return k.String()
}

// Invalidate is the single invalidation entry point: every list variant of resource
// and the detail entries for ids become invalid. In-flight fetches for those keys
// are orphaned and their results discarded.
func (c *Cache) Invalidate(resource string, ids ...string) {
	c.mu.Lock()
	c.gens[resource+"|"+string(KindList)]++
	for _, id := range ids {
		if id == "" {
			continue
		}
		c.gens[DetailKey(resource, id).String()]++
	}
	c.mu.Unlock()

	c.invalidations.Add(1)
	c.emit(EventInvalidated, Key{Resource: resource, Kind: KindList})
}

// Clear drops every entry and orphans every in-flight fetch.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.epoch++
	clear(c.entries)
	clear(c.gens)
	c.mu.Unlock()
}

// Peek returns the stored value for k and its state without fetching.
func (c *Cache) Peek(k Key, staleAfter time.Duration) (any, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k.String()]
	if !ok {
		return nil, StateMissing
	}
	if e.stamp != c.stampLocked(k) {
		return e.value, StateInvalidated
	}
	if c.now().Sub(e.fetchedAt) < staleAfter {
		return e.value, StateFresh
	}
	return e.value, StateStale
}

// Len returns the number of stored entries, including invalidated ones not yet collected.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits          uint64
	Misses        uint64
	StaleServed   uint64
	Coalesced     uint64
	Invalidations uint64
	Evictions     uint64
	Entries       int
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		StaleServed:   c.staleServed.Load(),
		Coalesced:     c.coalesced.Load(),
		Invalidations: c.invalidations.Load(),
		Evictions:     c.evictions.Load(),
		Entries:       c.Len(),
	}
}

func (c *Cache) emit(ev Event, k Key) {
	switch ev {
	case EventHit:
		c.hits.Add(1)
	case EventMiss:
		c.misses.Add(1)
	case EventStaleServed:
		c.staleServed.Add(1)
	case EventCoalesced:
		c.coalesced.Add(1)
	case EventEvicted:
		c.evictions.Add(1)
	}
	if c.observe != nil {
		c.observe(ev, k)
	}
}

// Collect evicts entries idle for GCAfter and entries orphaned by invalidation.
// It returns the number of evicted entries.
func (c *Cache) Collect() int {
	c.mu.Lock()
	now := c.now()
	var evicted []Key
	for ks, e := range c.entries {
		k := e.key
		if e.stamp != c.stampLocked(k) || (c.cfg.GCAfter > 0 && now.Sub(e.lastAccess) >= c.cfg.GCAfter) {
			delete(c.entries, ks)
			evicted = append(evicted, k)
		}
	}
	c.mu.Unlock()

	for _, k := range evicted {
		c.emit(EventEvicted, k)
	}
	return len(evicted)
}

func (c *Cache) janitor() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-c.done:
			return
		}
	}
}

// Close stops the janitor. Get keeps working after Close.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

// Fetch is the typed form of [Cache.Get].
func Fetch[T any](ctx context.Context, c *Cache, k Key, staleAfter time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, k, staleAfter, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, errUnexpectedType
	}
	return out, nil
}
