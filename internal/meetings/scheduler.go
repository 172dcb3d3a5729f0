// Package meetings keeps one reminder timer per upcoming meeting and fires
// it a fixed lead time before the meeting starts.
package meetings

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/mellow/internal/logger"
	"github.com/sandeepkv93/mellow/internal/metrics"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/notify"
	"github.com/sandeepkv93/mellow/internal/snapshot"
)

const DefaultLead = 5 * time.Minute

// Delayer runs fn after d and returns a cancel handle. fn must not be
// invoked synchronously from AfterFunc.
type Delayer interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// TimerDelayer is a Delayer backed by time.AfterFunc. Callbacks run on their
// own goroutine.
type TimerDelayer struct{}

func (TimerDelayer) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Pending is a scheduled, not yet fired reminder.
type Pending struct {
	Key         string
	TaskName    string
	MeetingTime time.Time
	NotifyAt    time.Time
}

type pendingEntry struct {
	Pending
	gen    uint64
	cancel func()
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLead overrides how long before the meeting the reminder fires.
func WithLead(lead time.Duration) Option {
	return func(s *Scheduler) {
		if lead > 0 {
			s.lead = lead
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithFiredHook registers a callback invoked after a reminder fired and
// left the pending set.
func WithFiredHook(fn func(Pending)) Option {
	return func(s *Scheduler) { s.onFired = fn }
}

// Scheduler owns the pending reminder set. It is safe for concurrent use:
// timer callbacks may arrive on any goroutine.
type Scheduler struct {
	mu         sync.Mutex
	pending    map[string]*pendingEntry
	gen        uint64
	delayer    Delayer
	permission notify.Permission
	display    notify.Displayer
	now        func() time.Time
	lead       time.Duration
	loc        *time.Location
	log        *slog.Logger
	onFired    func(Pending)
}

func NewScheduler(delayer Delayer, permission notify.Permission, display notify.Displayer, opts ...Option) *Scheduler {
	s := &Scheduler{
		pending:    make(map[string]*pendingEntry),
		delayer:    delayer,
		permission: permission,
		display:    display,
		now:        time.Now,
		lead:       DefaultLead,
		loc:        time.Local,
		log:        logger.Discard(),
	}
	if s.delayer == nil {
		s.delayer = TimerDelayer{}
	}
	if s.permission == nil {
		s.permission = notify.NewStaticPermission(false)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type meeting struct {
	key  string
	name string
	at   time.Time
}

// Reconcile brings the pending set in line with the meetings in snap.
// Permission is read on every call, so meetings skipped while permission was
// missing get scheduled by the first reconcile after it is granted.
func (s *Scheduler) Reconcile(snap snapshot.Snapshot) {
	now := s.now()
	granted := s.permission.Granted()

	current := make([]meeting, 0)
	qualifying := make(map[string]bool)
	snap.Each(func(e snapshot.Entry) bool {
		if e.Task.Status != model.StatusMeeting {
			return true
		}
		at, ok := e.Task.MeetingTime()
		if !ok {
			return true
		}
		current = append(current, meeting{key: e.Key, name: e.Task.Name, at: at})
		qualifying[e.Key] = true
		return true
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.pending {
		if qualifying[key] {
			continue
		}
		entry.cancel()
		delete(s.pending, key)
		metrics.RecordReminderCancelled("gone")
		s.log.Debug("meeting reminder cancelled", "key", key, "reason", "gone")
	}

	for _, m := range current {
		if entry, ok := s.pending[m.key]; ok {
			if entry.MeetingTime.Equal(m.at) {
				entry.TaskName = m.name
				continue
			}
			// The old timer goes before the replacement exists.
			entry.cancel()
			delete(s.pending, m.key)
			metrics.RecordReminderCancelled("rescheduled")
			s.log.Debug("meeting reminder rescheduled", "key", m.key, "meeting_time", m.at)
		}
		s.scheduleLocked(m, now, granted)
	}
}

func (s *Scheduler) scheduleLocked(m meeting, now time.Time, granted bool) {
	notifyAt := m.at.Add(-s.lead)
	if !m.at.After(now) || !notifyAt.After(now) {
		return
	}
	if !granted {
		return
	}

	s.gen++
	gen := s.gen
	key := m.key
	cancel := s.delayer.AfterFunc(notifyAt.Sub(now), func() { s.fire(key, gen) })
	s.pending[key] = &pendingEntry{
		Pending: Pending{Key: key, TaskName: m.name, MeetingTime: m.at, NotifyAt: notifyAt},
		gen:     gen,
		cancel:  cancel,
	}
	metrics.RecordReminderScheduled()
	s.log.Debug("meeting reminder scheduled", "key", key, "notify_at", notifyAt)
}

// fire runs on the delayer's callback path. A timer that was cancelled or
// replaced after its callback got queued finds a different generation and
// does nothing.
func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	entry, ok := s.pending[key]
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	p := entry.Pending
	onFired := s.onFired
	s.mu.Unlock()

	s.show(p)
	if onFired != nil {
		onFired(p)
	}
}

func (s *Scheduler) show(p Pending) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordReminderFired("display_failed")
			s.log.Error("meeting reminder display panicked", "key", p.Key, "panic", r)
		}
	}()
	if s.display == nil {
		metrics.RecordReminderFired("display_failed")
		return
	}
	title := "Meeting in " + humanLead(s.lead)
	body := fmt.Sprintf("%s at %s", p.TaskName, p.MeetingTime.In(s.loc).Format("15:04"))
	if err := s.display.Display(title, body, "meeting-"+p.Key); err != nil {
		metrics.RecordReminderFired("display_failed")
		s.log.Warn("meeting reminder display failed", "key", p.Key, "error", err)
		return
	}
	metrics.RecordReminderFired("displayed")
	s.log.Info("meeting reminder displayed", "key", p.Key, "task", p.TaskName)
}

// CancelAll stops every pending timer and empties the set. No reminder
// fires after it returns.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.pending {
		entry.cancel()
		delete(s.pending, key)
		metrics.RecordReminderCancelled("cancel_all")
	}
}

// ListPending returns the pending reminders ordered by meeting time.
func (s *Scheduler) ListPending() []Pending {
	s.mu.Lock()
	out := make([]Pending, 0, len(s.pending))
	for _, entry := range s.pending {
		out = append(out, entry.Pending)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].MeetingTime.Equal(out[j].MeetingTime) {
			return out[i].Key < out[j].Key
		}
		return out[i].MeetingTime.Before(out[j].MeetingTime)
	})
	return out
}

func (s *Scheduler) IsPermissionGranted() bool {
	return s.permission.Granted()
}

func (s *Scheduler) RequestPermission(ctx context.Context) (bool, error) {
	return s.permission.Request(ctx)
}

func humanLead(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	minutes := int(d / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
