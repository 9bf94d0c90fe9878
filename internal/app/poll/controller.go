package poll

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/mo"

	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/app/registry"
	"github.com/osa030/vlcpanel/internal/app/render"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

const (
	DefaultInterval   = 1000 * time.Millisecond
	DefaultRetryDelay = 500 * time.Millisecond
)

var (
	ErrAlreadyStarted = errors.New("poll loop already started")
)

// Fetcher reads one snapshot of a queue.
type Fetcher interface {
	Fetch(ctx context.Context, queue snapshot.Queue) (snapshot.Snapshot, error)
}

// Config holds controller configuration.
type Config struct {
	Queue      snapshot.Queue
	Fetcher    Fetcher
	Registry   *registry.Registry
	Reconciler *reconcile.Reconciler
	Sink       render.Sink
	Interval   time.Duration // Delay after a successful cycle (DefaultInterval when zero)
	RetryDelay time.Duration // Delay after a failed cycle (DefaultRetryDelay when zero)
	Scheduler  Scheduler     // TimerScheduler when nil
}

// Controller runs the poll loop of one queue. At most one fetch is in flight.
type Controller struct {
	id         string
	queue      snapshot.Queue
	fetcher    Fetcher
	registry   *registry.Registry
	reconciler *reconcile.Reconciler
	sink       render.Sink
	interval   time.Duration
	retryDelay time.Duration
	scheduler  Scheduler

	mu          sync.Mutex
	state       State
	gen         uint64 // Incremented by Stop; in-flight results of older generations are dropped
	tick        uint64 // Incremented per scheduled cycle; stale timer callbacks are dropped
	pending     bool   // Trigger arrived while polling
	cancelTimer func()
	ctx         context.Context
	cancel      context.CancelFunc
	prev        mo.Option[snapshot.Snapshot]
	failures    int
	lastErr     error
}

// New creates a new controller in the idle state.
func New(cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TimerScheduler{}
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.New(registry.Config{})
	}
	if cfg.Reconciler == nil {
		cfg.Reconciler = reconcile.New(nil)
	}
	if cfg.Sink == nil {
		cfg.Sink = render.Fanout{}
	}
	return &Controller{
		id:         uuid.NewString(),
		queue:      cfg.Queue,
		fetcher:    cfg.Fetcher,
		registry:   cfg.Registry,
		reconciler: cfg.Reconciler,
		sink:       cfg.Sink,
		interval:   cfg.Interval,
		retryDelay: cfg.RetryDelay,
		scheduler:  cfg.Scheduler,
		state:      StateIdle,
		prev:       mo.None[snapshot.Snapshot](),
	}
}

// Queue returns the polled queue.
func (c *Controller) Queue() snapshot.Queue {
	return c.queue
}

// Registry returns the widget registry fed by this controller.
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

// Start begins polling immediately. Cancelling ctx stops the controller.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return errors.Wrapf(ErrAlreadyStarted, "%s loop is %s", c.queue, c.state)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	context.AfterFunc(c.ctx, c.Stop)

	zlog.Info().Msgf("poll[%s]: starting %s loop", c.id, c.queue)
	c.startCycleLocked()
	return nil
}

// Stop cancels the scheduled cycle and discards the result of an in-flight fetch.
// It is idempotent; a stopped controller cannot be restarted.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return
	}
	c.state = StateStopped
	c.gen++
	c.tick++
	c.pending = false
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	zlog.Info().Msgf("poll[%s]: stopped %s loop", c.id, c.queue)
}

// Trigger runs a cycle now. While a fetch is in flight the cycle is deferred
// until it completes. It has no effect before Start or after Stop.
func (c *Controller) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePolling:
		c.pending = true
	case StateScheduled:
		c.tick++
		if c.cancelTimer != nil {
			c.cancelTimer()
			c.cancelTimer = nil
		}
		c.startCycleLocked()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Failures returns the number of consecutive failed cycles and the last error.
func (c *Controller) Failures() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures, c.lastErr
}

func (c *Controller) startCycleLocked() {
	c.state = StatePolling
	gen := c.gen
	ctx := c.ctx
	go func() {
		snap, err := c.fetcher.Fetch(ctx, c.queue)
		c.complete(gen, snap, err)
	}()
}

func (c *Controller) complete(gen uint64, snap snapshot.Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StatePolling {
		zlog.Debug().Msgf("poll[%s]: discarding late %s result", c.id, c.queue)
		return
	}

	delay := c.interval
	if err != nil {
		c.failures++
		c.lastErr = err
		delay = c.retryDelay
		zlog.Warn().Msgf("poll[%s]: fetch failed (%d in a row), retrying in %v: %v", c.id, c.failures, delay, err)
	} else {
		c.failures = 0
		c.lastErr = nil
		ops := c.reconciler.Reconcile(c.prev, snap, c.registry)
		c.prev = mo.Some(snap)
		if len(ops) > 0 {
			zlog.Debug().Msgf("poll[%s]: %d render ops", c.id, len(ops))
			c.sink.Apply(c.queue, ops)
		}
	}

	if c.pending {
		c.pending = false
		c.startCycleLocked()
		return
	}
	c.scheduleLocked(delay)
}

func (c *Controller) scheduleLocked(delay time.Duration) {
	c.state = StateScheduled
	c.tick++
	tick := c.tick
	c.cancelTimer = c.scheduler.AfterFunc(delay, func() {
		c.fire(tick)
	})
}

func (c *Controller) fire(tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tick != c.tick || c.state != StateScheduled {
		return
	}
	c.cancelTimer = nil
	c.startCycleLocked()
}
