package reconcile

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/mellow/internal/meetings"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/notify"
	"github.com/sandeepkv93/mellow/internal/snapshot"
	"github.com/sandeepkv93/mellow/internal/testutil"
)

const day = model.Day("2026-02-09")

var base = time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu          sync.Mutex
	completions [][]string
	meetings    [][]meetings.Pending
	errs        []error
	snapshots   int
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnCompletions: func(keys []string) {
			r.mu.Lock()
			r.completions = append(r.completions, keys)
			r.mu.Unlock()
		},
		OnMeetingsChanged: func(p []meetings.Pending) {
			r.mu.Lock()
			r.meetings = append(r.meetings, p)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnSnapshot: func(model.Day, snapshot.Snapshot) {
			r.mu.Lock()
			r.snapshots++
			r.mu.Unlock()
		},
	}
}

type fixture struct {
	feed     *testutil.Feed
	delayer  *testutil.Delayer
	display  *notify.Recorder
	sched    *meetings.Scheduler
	ctrl     *Controller
	recorder *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock(base)
	f := &fixture{
		feed:     testutil.NewFeed(),
		delayer:  testutil.NewDelayer(clock),
		display:  &notify.Recorder{},
		recorder: &recorder{},
	}
	f.sched = meetings.NewScheduler(f.delayer, notify.NewStaticPermission(true), f.display, meetings.WithClock(clock.Now))
	f.ctrl = NewController(f.feed, f.sched)
	return f
}

func task(id string, status model.Status) model.Task {
	return model.Task{ID: id, Name: id, Status: status, Day: day}
}

func TestDeliveryDrivesCompletionsAndMeetings(t *testing.T) {
	f := newFixture(t)
	dispose, err := f.ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)
	defer dispose()
	assert.Equal(t, StateSubscribed, f.ctrl.State())

	f.feed.Push(day, []model.Task{
		task("t1", model.StatusCompleted),
		task("t2", model.StatusInProgress),
		testutil.Meeting("m1", "Standup", base.Add(time.Hour)),
	})
	f.feed.Push(day, []model.Task{
		task("t1", model.StatusCompleted),
		task("t2", model.StatusCompleted),
		testutil.Meeting("m1", "Standup", base.Add(time.Hour)),
	})
	f.feed.Push(day, []model.Task{
		task("t1", model.StatusCompleted),
		task("t2", model.StatusCompleted),
	})

	// The first delivery seeds: t1 is reported because it is already completed.
	assert.Equal(t, [][]string{{"t1"}, {"t2"}}, f.recorder.completions)
	require.Len(t, f.recorder.meetings, 3, "meetings handler runs on every delivery")
	assert.Len(t, f.recorder.meetings[0], 1)
	assert.Len(t, f.recorder.meetings[1], 1)
	assert.Empty(t, f.recorder.meetings[2])
	assert.Equal(t, 3, f.recorder.snapshots)
}

func TestEmptyDeliveryIsHandled(t *testing.T) {
	f := newFixture(t)
	dispose, err := f.ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)
	defer dispose()

	f.feed.Push(day, nil)
	assert.Empty(t, f.recorder.completions)
	require.Len(t, f.recorder.meetings, 1)
	assert.Empty(t, f.recorder.meetings[0])
}

func TestFeedErrorKeepsLastGoodState(t *testing.T) {
	f := newFixture(t)
	dispose, err := f.ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)
	defer dispose()

	f.feed.Push(day, []model.Task{task("t1", model.StatusInProgress), testutil.Meeting("m1", "Sync", base.Add(time.Hour))})
	boom := errors.New("permission denied by store")
	f.feed.Fail(day, boom)

	require.Len(t, f.recorder.errs, 1)
	assert.ErrorIs(t, f.recorder.errs[0], boom)
	assert.Len(t, f.ctrl.Pending(), 1, "pending reminders survive a feed error")

	f.feed.Push(day, []model.Task{task("t1", model.StatusCompleted), testutil.Meeting("m1", "Sync", base.Add(time.Hour))})
	assert.Equal(t, [][]string{{"t1"}}, f.recorder.completions, "diff continues from the last good snapshot")
}

func TestStartTwiceFailsFast(t *testing.T) {
	f := newFixture(t)
	dispose, err := f.ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)

	_, err = f.ctrl.Start(day, f.recorder.handlers())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.Equal(t, 1, f.feed.Subscribers(), "no duplicate subscription")

	dispose()
	_, err = f.ctrl.Start(day, f.recorder.handlers())
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Equal(t, StateDisposed, f.ctrl.State())
}

func TestStartRejectsInvalidDay(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Start("today", f.recorder.handlers())
	assert.ErrorIs(t, err, ErrInvalidDay)
	assert.Equal(t, StateIdle, f.ctrl.State())
}

func TestSubscribeFailureLeavesControllerIdle(t *testing.T) {
	f := newFixture(t)
	f.feed.SubscribeErr = errors.New("store offline")
	_, err := f.ctrl.Start(day, f.recorder.handlers())
	require.Error(t, err)
	assert.Equal(t, StateIdle, f.ctrl.State())

	f.feed.SubscribeErr = nil
	dispose, err := f.ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)
	dispose()
}

func TestDisposeCancelsAllTimers(t *testing.T) {
	f := newFixture(t)
	dispose, err := f.ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)

	f.feed.Push(day, []model.Task{
		testutil.Meeting("a", "A", base.Add(time.Hour)),
		testutil.Meeting("b", "B", base.Add(2*time.Hour)),
		testutil.Meeting("c", "C", base.Add(3*time.Hour)),
	})
	require.Equal(t, 3, f.delayer.Live())

	dispose()
	assert.Zero(t, f.delayer.Live())
	assert.Equal(t, 3, f.delayer.CancelCalls())
	assert.Equal(t, 1, f.feed.Unsubscribed)
	assert.Zero(t, f.feed.Subscribers())

	// Original fire times pass; nothing is displayed, even for callbacks
	// that were already in flight.
	f.delayer.Advance(4 * time.Hour)
	f.delayer.FireCancelled()
	assert.Empty(t, f.display.Items())

	dispose()
	assert.Equal(t, 1, f.feed.Unsubscribed, "dispose is idempotent")
}

func TestDisposeFromInsideHandler(t *testing.T) {
	f := newFixture(t)
	var dispose func()
	h := f.recorder.handlers()
	h.OnCompletions = func([]string) { dispose() }

	var err error
	dispose, err = f.ctrl.Start(day, h)
	require.NoError(t, err)

	f.feed.Push(day, []model.Task{
		task("t1", model.StatusInProgress),
		testutil.Meeting("m1", "Sync", base.Add(time.Hour)),
	})
	require.Equal(t, 1, f.delayer.Live())

	f.feed.Push(day, []model.Task{
		task("t1", model.StatusCompleted),
		testutil.Meeting("m1", "Sync", base.Add(time.Hour)),
	})
	assert.Equal(t, StateDisposed, f.ctrl.State())
	assert.Zero(t, f.delayer.Live(), "no reminders recreated after dispose")
	assert.Len(t, f.recorder.meetings, 1, "meetings handler skipped once disposed")
}

func TestDeliveriesAfterDisposeAreDropped(t *testing.T) {
	f := newFixture(t)
	var late func([]model.Task, error)
	feed := feedFunc(func(d model.Day, fn func([]model.Task, error)) (func(), error) {
		late = fn
		return func() {}, nil
	})
	ctrl := NewController(feed, f.sched)
	dispose, err := ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)
	dispose()

	late([]model.Task{task("t1", model.StatusCompleted)}, nil)
	late(nil, errors.New("late error"))
	assert.Empty(t, f.recorder.completions)
	assert.Empty(t, f.recorder.errs)
}

func TestSubtaskCompletionThroughController(t *testing.T) {
	f := newFixture(t)
	dispose, err := f.ctrl.Start(day, f.recorder.handlers())
	require.NoError(t, err)
	defer dispose()

	parent := task("p", model.StatusInProgress)
	parent.Subtasks = []model.Task{task("a", model.StatusNotStarted), task("b", model.StatusNotStarted)}
	f.feed.Push(day, []model.Task{parent})

	parent.Subtasks = []model.Task{task("a", model.StatusNotStarted), task("b", model.StatusCompleted)}
	f.feed.Push(day, []model.Task{parent})

	assert.Equal(t, [][]string{{"p/b"}}, f.recorder.completions)
}

func TestControllersAreIndependent(t *testing.T) {
	clock := testutil.NewClock(base)
	delayer := testutil.NewDelayer(clock)
	feed := testutil.NewFeed()
	perm := notify.NewStaticPermission(true)

	first := NewController(feed, meetings.NewScheduler(delayer, perm, nil, meetings.WithClock(clock.Now)))
	second := NewController(feed, meetings.NewScheduler(delayer, perm, nil, meetings.WithClock(clock.Now)))

	var firstDone, secondDone [][]string
	d1, err := first.Start(day, Handlers{OnCompletions: func(k []string) { firstDone = append(firstDone, k) }})
	require.NoError(t, err)
	feed.Push(day, []model.Task{task("t1", model.StatusInProgress), testutil.Meeting("m", "M", base.Add(time.Hour))})

	d2, err := second.Start(day, Handlers{OnCompletions: func(k []string) { secondDone = append(secondDone, k) }})
	require.NoError(t, err)
	feed.Push(day, []model.Task{task("t1", model.StatusCompleted), testutil.Meeting("m", "M", base.Add(time.Hour))})

	assert.Equal(t, [][]string{{"t1"}}, firstDone)
	assert.Equal(t, [][]string{{"t1"}}, secondDone, "second controller seeds on its own first delivery")

	d1()
	assert.Len(t, second.Pending(), 1, "disposing one controller leaves the other's reminders")

	feed.Push(day, []model.Task{task("t1", model.StatusCompleted), task("t2", model.StatusCompleted), testutil.Meeting("m", "M", base.Add(time.Hour))})
	assert.Equal(t, [][]string{{"t1"}}, firstDone)
	assert.Equal(t, [][]string{{"t1"}, {"t2"}}, secondDone)
	d2()
	assert.Zero(t, delayer.Live())
}

type feedFunc func(model.Day, func([]model.Task, error)) (func(), error)

func (f feedFunc) Subscribe(d model.Day, fn func([]model.Task, error)) (func(), error) {
	return f(d, fn)
}

func TestResyncAfterPermissionGrant(t *testing.T) {
	clock := testutil.NewClock(base)
	delayer := testutil.NewDelayer(clock)
	feed := testutil.NewFeed()
	perm := notify.NewStaticPermission(false)
	ctrl := NewController(feed, meetings.NewScheduler(delayer, perm, nil, meetings.WithClock(clock.Now)))

	ctrl.Resync()

	rec := &recorder{}
	dispose, err := ctrl.Start(day, rec.handlers())
	require.NoError(t, err)
	defer dispose()

	feed.Push(day, []model.Task{testutil.Meeting("m1", "Sync", base.Add(time.Hour))})
	assert.Empty(t, ctrl.Pending())

	perm.Set(true)
	ctrl.Resync()
	assert.Len(t, ctrl.Pending(), 1)
	require.Len(t, rec.meetings, 2)
	assert.Len(t, rec.meetings[1], 1)
}
