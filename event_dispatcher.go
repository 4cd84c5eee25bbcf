package goHMS

import (
	"context"
	"sync"
	"sync/atomic"
)

// sessionEnding reports whether t tells observers that the user is signed
// out. These events are never dropped and never wait for buffer space: a
// forced logout is emitted from inside a failing request.
func sessionEnding(t EventType) bool {
	return t == EventLogout || t == EventForcedLogout
}

// eventDispatcher delivers events to the sink in emission order from a single
// goroutine. Only routine events count against BufferSize.
type eventDispatcher struct {
	cfg  EventsConfig
	sink EventSink

	mu      sync.Mutex
	queue   []Event
	closed  bool
	dropped map[EventType]uint64

	// slots holds one token per queued routine event.
	slots chan struct{}
	wake  chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup

	droppedTotal atomic.Uint64
	closeOnce    sync.Once
}

func newEventDispatcher(cfg EventsConfig, sink EventSink) *eventDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &eventDispatcher{
		cfg:     cfg,
		sink:    sink,
		dropped: make(map[EventType]uint64),
		slots:   make(chan struct{}, cfg.BufferSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	defer d.wg.Done()

	for {
		if event, ok := d.next(); ok {
			d.sink.Emit(context.Background(), event)
			continue
		}
		select {
		case <-d.wake:
		case <-d.done:
			for event, ok := d.next(); ok; event, ok = d.next() {
				d.sink.Emit(context.Background(), event)
			}
			return
		}
	}
}

func (d *eventDispatcher) next() (Event, bool) {
	d.mu.Lock()
	if len(d.queue) == 0 {
		d.mu.Unlock()
		return Event{}, false
	}
	event := d.queue[0]
	d.queue[0] = Event{}
	d.queue = d.queue[1:]
	d.mu.Unlock()

	if !sessionEnding(event.Type) {
		<-d.slots
	}
	return event, true
}

// Emit queues event. Logout and forced-logout events are always queued. For
// other events a full buffer either drops and counts them (DropIfFull) or
// blocks until there is room, ctx ends, or the dispatcher closes.
func (d *eventDispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	routine := !sessionEnding(event.Type)
	if routine && !d.reserve(ctx, event.Type) {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if routine {
			<-d.slots
		}
		return
	}
	d.queue = append(d.queue, event)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *eventDispatcher) reserve(ctx context.Context, t EventType) bool {
	select {
	case <-d.done:
		return false
	default:
	}

	if d.cfg.DropIfFull {
		select {
		case d.slots <- struct{}{}:
			return true
		default:
			d.mu.Lock()
			d.dropped[t]++
			d.mu.Unlock()
			d.droppedTotal.Add(1)
			return false
		}
	}

	select {
	case d.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	case <-d.done:
		return false
	}
}

// Close stops accepting events and delivers what is queued.
func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.droppedTotal.Load()
}

// DroppedByType copies the per-type drop counts.
func (d *eventDispatcher) DroppedByType() map[EventType]uint64 {
	out := make(map[EventType]uint64)
	if d == nil {
		return out
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for t, n := range d.dropped {
		out[t] = n
	}
	return out
}
