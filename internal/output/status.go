package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/posegrain/internal/monitoring"
)

// Status is the connection state shared by every backend.
type Status string

const (
	// StatusDisabled means the backend's transport is unavailable on this
	// host; nothing will be sent.
	StatusDisabled     Status = "disabled"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// maxInFlight bounds concurrent fire-and-forget deliveries per client. When
// the transport is slower than the frame rate, new sends are dropped rather
// than piling up goroutines.
const maxInFlight = 256

// listenerSet is an ordered set of callbacks with unsubscribe handles.
type listenerSet[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id uint64
	fn func(T)
}

func (l *listenerSet[T]) add(fn func(T)) (remove func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, listenerEntry[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *listenerSet[T]) notify(v T) {
	l.mu.Lock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// connection is the status state machine and async delivery core embedded by
// each backend. Every transition after Close is ignored, so a send that
// completes late cannot bring a closed client back to connected.
type connection struct {
	name string

	mu     sync.Mutex
	status Status
	closed bool

	listeners listenerSet[Status]

	ctx    context.Context
	cancel context.CancelFunc
	// inflight covers transport work only; settled also covers the status
	// transition that follows it, which may run listeners.
	inflight sync.WaitGroup
	settled  sync.WaitGroup
	slots    chan struct{}
	dropped  atomic.Uint64
}

func newConnection(name string, available bool) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	initial := StatusDisconnected
	if !available {
		initial = StatusDisabled
	}
	return &connection{
		name:   name,
		status: initial,
		ctx:    ctx,
		cancel: cancel,
		slots:  make(chan struct{}, maxInFlight),
	}
}

// Status returns the current status.
func (c *connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Closed reports whether Close has been called.
func (c *connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dropped returns how many sends were discarded because too many deliveries
// were already in flight.
func (c *connection) Dropped() uint64 {
	return c.dropped.Load()
}

// SubscribeStatus calls fn with the current status immediately and then with
// every change until the returned function is called. fn runs on whichever
// goroutine caused the change and must not block.
func (c *connection) SubscribeStatus(fn func(Status)) func() {
	if fn == nil {
		return func() {}
	}
	remove := c.listeners.add(fn)
	fn(c.Status())
	return remove
}

// transition applies next unless the client is closed or already in that
// state.
func (c *connection) transition(next Status) {
	c.mu.Lock()
	if c.closed || c.status == next {
		c.mu.Unlock()
		return
	}
	c.status = next
	c.mu.Unlock()
	c.listeners.notify(next)
}

// shutdown marks the connection closed, moves it to disconnected and cancels
// in-flight deliveries, waiting for their transport work to finish. It reports
// false when already closed. Listeners may call it: a delivery releases its
// slot before notifying.
func (c *connection) shutdown() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	changed := c.status != StatusDisconnected
	c.status = StatusDisconnected
	c.mu.Unlock()

	c.cancel()
	if changed {
		c.listeners.notify(StatusDisconnected)
	}
	c.inflight.Wait()
	return true
}

// usable reports whether the client is neither closed nor disabled.
func (c *connection) usable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.status != StatusDisabled
}

// acquire reserves an in-flight slot. It fails when the client is closed or
// disabled, or when the in-flight limit is reached. Every successful acquire
// is followed by release and then settle.
func (c *connection) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.status == StatusDisabled {
		return false
	}
	select {
	case c.slots <- struct{}{}:
	default:
		c.dropped.Add(1)
		return false
	}
	c.inflight.Add(1)
	c.settled.Add(1)
	return true
}

func (c *connection) release() {
	<-c.slots
	c.inflight.Done()
}

func (c *connection) settle() {
	c.settled.Done()
}

// Wait blocks until every delivery issued so far has completed and its
// status change has been applied. It must not be called from a listener.
func (c *connection) Wait() {
	c.settled.Wait()
}

// dispatch runs op on its own goroutine and converts its outcome into a
// status transition. The caller never waits and never sees the error.
func (c *connection) dispatch(op string, fn func(ctx context.Context) error) {
	if !c.acquire() {
		return
	}
	go func() {
		defer c.settle()
		err := guard(c.ctx, fn)
		c.release()
		if err != nil {
			monitoring.Debugf("%s: %s failed: %v", c.name, op, err)
			c.transition(StatusDisconnected)
			return
		}
		c.transition(StatusConnected)
	}()
}

// connect runs fn synchronously, moving through connecting to connected or
// disconnected. ctx is additionally cancelled if the client is closed while
// the attempt is in progress.
func (c *connection) connect(ctx context.Context, fn func(ctx context.Context) error) {
	if !c.usable() {
		return
	}
	c.transition(StatusConnecting)
	if !c.acquire() {
		// closed by a listener, or saturated
		c.transition(StatusDisconnected)
		return
	}
	defer c.settle()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	err := guard(ctx, fn)
	c.release()
	if err != nil {
		monitoring.Logf("%s: connect failed: %v", c.name, err)
		c.transition(StatusDisconnected)
		return
	}
	monitoring.Logf("%s: connected", c.name)
	c.transition(StatusConnected)
}

// guard converts a transport panic into an error.
func guard(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return fn(ctx)
}
