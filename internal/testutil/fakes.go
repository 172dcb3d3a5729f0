// Package testutil provides deterministic stand-ins for the clock, timer,
// feed and display collaborators of the reconciliation core.
package testutil

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/mellow/internal/model"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Timer is one AfterFunc registration on a Delayer.
type Timer struct {
	At        time.Time
	Cancelled int
	Fired     bool
	fn        func()
}

func (t *Timer) Live() bool { return t.Cancelled == 0 && !t.Fired }

// Delayer records timers against a Clock and fires them on Advance.
// Cancelled timers never fire, matching the guarantee the scheduler
// relies on.
type Delayer struct {
	mu     sync.Mutex
	clock  *Clock
	timers []*Timer
}

func NewDelayer(clock *Clock) *Delayer {
	return &Delayer{clock: clock}
}

func (d *Delayer) AfterFunc(dur time.Duration, fn func()) func() {
	t := &Timer{At: d.clock.Now().Add(dur), fn: fn}
	d.mu.Lock()
	d.timers = append(d.timers, t)
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		t.Cancelled++
		d.mu.Unlock()
	}
}

// Advance moves the clock forward and fires due live timers in time order.
func (d *Delayer) Advance(dur time.Duration) {
	target := d.clock.Now().Add(dur)
	d.clock.Set(target)

	d.mu.Lock()
	due := make([]*Timer, 0)
	for _, t := range d.timers {
		if t.Live() && !t.At.After(target) {
			t.Fired = true
			due = append(due, t)
		}
	}
	d.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })
	for _, t := range due {
		t.fn()
	}
}

// FireCancelled runs the callbacks of cancelled timers anyway, simulating a
// callback that was already queued when Cancel ran.
func (d *Delayer) FireCancelled() {
	d.mu.Lock()
	stale := make([]*Timer, 0)
	for _, t := range d.timers {
		if t.Cancelled > 0 && !t.Fired {
			t.Fired = true
			stale = append(stale, t)
		}
	}
	d.mu.Unlock()
	for _, t := range stale {
		t.fn()
	}
}

func (d *Delayer) Timers() []*Timer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Timer, len(d.timers))
	copy(out, d.timers)
	return out
}

func (d *Delayer) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.timers {
		if t.Live() {
			n++
		}
	}
	return n
}

func (d *Delayer) CancelCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.timers {
		n += t.Cancelled
	}
	return n
}

// Feed is a hand-driven live feed.
type Feed struct {
	mu           sync.Mutex
	subs         map[int]*feedSub
	nextID       int
	SubscribeErr error
	Unsubscribed int
}

type feedSub struct {
	day model.Day
	fn  func([]model.Task, error)
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]*feedSub)}
}

func (f *Feed) Subscribe(day model.Day, fn func([]model.Task, error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = &feedSub{day: day, fn: fn}
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.Unsubscribed++
			f.mu.Unlock()
		})
	}, nil
}

// Push delivers tasks to every subscriber of day.
func (f *Feed) Push(day model.Day, tasks []model.Task) {
	for _, fn := range f.subscribers(day) {
		fn(tasks, nil)
	}
}

// Fail delivers err to every subscriber of day.
func (f *Feed) Fail(day model.Day, err error) {
	if err == nil {
		err = errors.New("testutil: feed failure")
	}
	for _, fn := range f.subscribers(day) {
		fn(nil, err)
	}
}

func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) subscribers(day model.Day) []func([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.subs))
	for id, s := range f.subs {
		if s.day == day {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]func([]model.Task, error), 0, len(ids))
	for _, id := range ids {
		out = append(out, f.subs[id].fn)
	}
	return out
}

func TimePtr(t time.Time) *time.Time { return &t }

// Meeting builds a MEETING task scheduled at at.
func Meeting(id, name string, at time.Time) model.Task {
	return model.Task{ID: id, Name: name, Status: model.StatusMeeting, StartedAt: TimePtr(at)}
}
