// Package reconcile wires a live task feed to completion detection and
// meeting reminders for one view of one day.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/mellow/internal/completion"
	"github.com/sandeepkv93/mellow/internal/logger"
	"github.com/sandeepkv93/mellow/internal/meetings"
	"github.com/sandeepkv93/mellow/internal/metrics"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/snapshot"
)

var (
	ErrAlreadyStarted = errors.New("reconcile: controller already started")
	ErrDisposed       = errors.New("reconcile: controller disposed")
	ErrInvalidDay     = errors.New("reconcile: invalid day")
)

// Feed delivers the full task list for a day on subscribe and again after
// every change, until the returned unsubscribe is called. A delivery carries
// either tasks or an error.
type Feed interface {
	Subscribe(day model.Day, fn func([]model.Task, error)) (unsubscribe func(), err error)
}

// Handlers receive the derived signals. OnCompletions is a one-shot event
// list: nothing is retained or replayed, so a consumer that ignores a call
// loses those events. Any handler may be nil.
type Handlers struct {
	OnCompletions     func(keys []string)
	OnMeetingsChanged func(pending []meetings.Pending)
	OnError           func(err error)
	OnSnapshot        func(day model.Day, s snapshot.Snapshot)
}

type State int

const (
	StateIdle State = iota
	StateSubscribed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Option func(*Controller)

func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// Controller owns the previous snapshot and the reminder scheduler for its
// lifetime. It moves IDLE -> SUBSCRIBED -> DISPOSED and never back.
type Controller struct {
	feed  Feed
	sched *meetings.Scheduler
	diff  *completion.Engine
	log   *slog.Logger

	// deliverMu serializes deliveries, handlers included, in arrival order.
	// last is only touched while it is held.
	deliverMu sync.Mutex
	last      snapshot.Snapshot

	mu          sync.Mutex
	state       State
	day         model.Day
	handlers    Handlers
	unsubscribe func()
}

func NewController(feed Feed, sched *meetings.Scheduler, opts ...Option) *Controller {
	c := &Controller{
		feed:  feed,
		sched: sched,
		diff:  completion.NewEngine(),
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the feed for day. A second Start fails with
// ErrAlreadyStarted rather than attaching a duplicate subscription, and a
// disposed controller cannot be restarted. The returned disposer is the same
// as calling Dispose.
func (c *Controller) Start(day model.Day, h Handlers) (func(), error) {
	if !day.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}

	c.mu.Lock()
	switch c.state {
	case StateSubscribed:
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	case StateDisposed:
		c.mu.Unlock()
		return nil, ErrDisposed
	}
	c.state = StateSubscribed
	c.day = day
	c.handlers = h
	c.mu.Unlock()

	unsubscribe, err := c.feed.Subscribe(day, c.deliver)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.handlers = Handlers{}
		c.mu.Unlock()
		return nil, fmt.Errorf("reconcile: subscribe %s: %w", day, err)
	}

	c.mu.Lock()
	if c.state == StateDisposed {
		// Disposed from inside the initial delivery.
		c.mu.Unlock()
		unsubscribe()
		return c.Dispose, nil
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	c.log.Info("reconcile started", "day", day)
	return c.Dispose, nil
}

// Dispose unsubscribes and cancels every pending reminder before returning.
// It is idempotent and safe to call from inside a handler.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return
	}
	c.state = StateDisposed
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.handlers = Handlers{}
	day := c.day
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.sched.CancelAll()
	c.log.Info("reconcile disposed", "day", day)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Day() model.Day {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

// Pending exposes the scheduler's current reminders.
func (c *Controller) Pending() []meetings.Pending {
	return c.sched.ListPending()
}

func (c *Controller) deliver(tasks []model.Task, feedErr error) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.state != StateSubscribed {
		c.mu.Unlock()
		metrics.RecordFeedDelivery("dropped")
		return
	}
	h := c.handlers
	day := c.day
	c.mu.Unlock()

	if feedErr != nil {
		metrics.RecordFeedDelivery("error")
		c.log.Warn("feed delivery failed", "day", day, "error", feedErr)
		if h.OnError != nil {
			h.OnError(feedErr)
		}
		return
	}
	metrics.RecordFeedDelivery("ok")

	snap := snapshot.Normalize(tasks)
	completed := c.diff.Observe(snap)
	c.last = snap

	if h.OnSnapshot != nil {
		h.OnSnapshot(day, snap)
	}
	if len(completed) > 0 {
		metrics.RecordCompletions(len(completed))
		c.log.Debug("tasks completed", "day", day, "keys", completed)
		if h.OnCompletions != nil {
			h.OnCompletions(completed)
		}
	}

	// Reconcile under mu so a concurrent Dispose either runs first (and we
	// skip) or waits and cancels what we scheduled.
	c.mu.Lock()
	if c.state != StateSubscribed {
		c.mu.Unlock()
		return
	}
	c.sched.Reconcile(snap)
	c.mu.Unlock()

	if h.OnMeetingsChanged != nil {
		h.OnMeetingsChanged(c.sched.ListPending())
	}
}

// Resync reconciles reminders against the last delivered snapshot again,
// picking up a permission grant without waiting for the next change.
func (c *Controller) Resync() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.state != StateSubscribed || c.last.IsZero() {
		c.mu.Unlock()
		return
	}
	h := c.handlers
	c.sched.Reconcile(c.last)
	c.mu.Unlock()

	if h.OnMeetingsChanged != nil {
		h.OnMeetingsChanged(c.sched.ListPending())
	}
}
