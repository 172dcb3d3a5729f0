package meetings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/notify"
	"github.com/sandeepkv93/mellow/internal/snapshot"
	"github.com/sandeepkv93/mellow/internal/testutil"
)

var base = time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock    *testutil.Clock
	delayer  *testutil.Delayer
	perm     *notify.StaticPermission
	recorder *notify.Recorder
	sched    *Scheduler
}

func newFixture(t *testing.T, granted bool, opts ...Option) *fixture {
	t.Helper()
	clock := testutil.NewClock(base)
	f := &fixture{
		clock:    clock,
		delayer:  testutil.NewDelayer(clock),
		perm:     notify.NewStaticPermission(granted),
		recorder: &notify.Recorder{},
	}
	opts = append([]Option{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	f.sched = NewScheduler(f.delayer, f.perm, f.recorder, opts...)
	return f
}

func snap(tasks ...model.Task) snapshot.Snapshot {
	return snapshot.Normalize(tasks)
}

func TestReconcileSchedulesFiveMinutesBefore(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour))))

	pending := f.sched.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "m1", pending[0].Key)
	assert.Equal(t, base.Add(55*time.Minute), pending[0].NotifyAt)

	timers := f.delayer.Timers()
	require.Len(t, timers, 1)
	assert.Equal(t, base.Add(55*time.Minute), timers[0].At)
}

func TestFireDisplaysReminderAndRemovesEntry(t *testing.T) {
	var fired []Pending
	f := newFixture(t, true, WithFiredHook(func(p Pending) { fired = append(fired, p) }))
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Design review", base.Add(30*time.Minute))))

	f.delayer.Advance(25 * time.Minute)

	items := f.recorder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Meeting in 5 minutes", items[0].Title)
	assert.Equal(t, "Design review at 09:30", items[0].Body)
	assert.Equal(t, "meeting-m1", items[0].DedupeKey)
	assert.Empty(t, f.sched.ListPending())
	require.Len(t, fired, 1)
	assert.Equal(t, "m1", fired[0].Key)
}

func TestReconcileIsIdempotentForUnchangedTime(t *testing.T) {
	f := newFixture(t, true)
	s := snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour)))

	f.sched.Reconcile(s)
	f.sched.Reconcile(s)

	assert.Len(t, f.delayer.Timers(), 1, "no new timer")
	assert.Zero(t, f.delayer.CancelCalls(), "no cancel")
	assert.Len(t, f.sched.ListPending(), 1)
}

func TestRenameWithoutTimeChangeKeepsTimer(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour))))
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Daily standup", base.Add(time.Hour))))

	assert.Len(t, f.delayer.Timers(), 1)
	assert.Equal(t, "Daily standup", f.sched.ListPending()[0].TaskName)
}

func TestRescheduleOnTimeChange(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour))))
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(2*time.Hour))))

	timers := f.delayer.Timers()
	require.Len(t, timers, 2)
	assert.Equal(t, 1, timers[0].Cancelled, "old timer cancelled")
	assert.True(t, timers[1].Live())
	assert.Equal(t, base.Add(115*time.Minute), timers[1].At)

	pending := f.sched.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, base.Add(2*time.Hour), pending[0].MeetingTime)
}

func TestNoReminderForPastOrImminentMeetings(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(
		testutil.Meeting("past", "Yesterday's sync", base.Add(-time.Hour)),
		testutil.Meeting("imminent", "Starting soon", base.Add(3*time.Minute)),
		testutil.Meeting("edge", "Exactly five", base.Add(5*time.Minute)),
	))
	assert.Empty(t, f.sched.ListPending())
	assert.Empty(t, f.delayer.Timers())
}

func TestMeetingsWithoutTimeOrOtherStatusAreIgnored(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(
		model.Task{ID: "m", Name: "No time", Status: model.StatusMeeting, PlannedAt: testutil.TimePtr(base.Add(time.Hour))},
		model.Task{ID: "w", Name: "Work", Status: model.StatusInProgress, StartedAt: testutil.TimePtr(base.Add(time.Hour))},
	))
	assert.Empty(t, f.sched.ListPending())
}

func TestRemovedOrChangedMeetingIsCancelled(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(
		testutil.Meeting("m1", "One", base.Add(time.Hour)),
		testutil.Meeting("m2", "Two", base.Add(2*time.Hour)),
	))
	require.Len(t, f.sched.ListPending(), 2)

	cancelled := testutil.Meeting("m2", "Two", base.Add(2*time.Hour))
	cancelled.Status = model.StatusCancelled
	f.sched.Reconcile(snap(cancelled))

	assert.Empty(t, f.sched.ListPending())
	assert.Zero(t, f.delayer.Live())
	assert.Equal(t, 2, f.delayer.CancelCalls())
}

func TestPermissionGateAndRetry(t *testing.T) {
	f := newFixture(t, false)
	s := snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour)))

	f.sched.Reconcile(s)
	assert.False(t, f.sched.IsPermissionGranted())
	assert.Empty(t, f.sched.ListPending())
	assert.Empty(t, f.delayer.Timers())

	f.perm.Set(true)
	granted, err := f.sched.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	f.sched.Reconcile(s)
	assert.Len(t, f.sched.ListPending(), 1)
}

func TestDisplayFailureStillRemovesEntry(t *testing.T) {
	f := newFixture(t, true)
	f.recorder.Err = errors.New("notification daemon gone")
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour))))

	f.delayer.Advance(time.Hour)
	assert.Empty(t, f.sched.ListPending())
}

func TestDisplayPanicIsContained(t *testing.T) {
	clock := testutil.NewClock(base)
	delayer := testutil.NewDelayer(clock)
	panicky := notify.DisplayFunc(func(string, string, string) error { panic("boom") })
	sched := NewScheduler(delayer, notify.NewStaticPermission(true), panicky, WithClock(clock.Now))

	sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour))))
	assert.NotPanics(t, func() { delayer.Advance(time.Hour) })
	assert.Empty(t, sched.ListPending())
}

func TestStaleTimerCallbackIsIgnored(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(time.Hour))))
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Standup", base.Add(2*time.Hour))))

	// The callback of the replaced timer runs anyway.
	f.delayer.FireCancelled()
	assert.Empty(t, f.recorder.Items())
	assert.Len(t, f.sched.ListPending(), 1)

	f.sched.CancelAll()
	f.delayer.FireCancelled()
	assert.Empty(t, f.recorder.Items())
}

func TestCancelAllStopsEveryTimer(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(
		testutil.Meeting("a", "A", base.Add(time.Hour)),
		testutil.Meeting("b", "B", base.Add(2*time.Hour)),
		testutil.Meeting("c", "C", base.Add(3*time.Hour)),
	))
	require.Equal(t, 3, f.delayer.Live())

	f.sched.CancelAll()
	assert.Zero(t, f.delayer.Live())
	assert.Empty(t, f.sched.ListPending())

	f.delayer.Advance(4 * time.Hour)
	assert.Empty(t, f.recorder.Items())
}

func TestListPendingOrderedByMeetingTime(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Reconcile(snap(
		testutil.Meeting("late", "Late", base.Add(3*time.Hour)),
		testutil.Meeting("early", "Early", base.Add(time.Hour)),
		testutil.Meeting("also-early", "Also early", base.Add(time.Hour)),
	))
	pending := f.sched.ListPending()
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"also-early", "early", "late"}, []string{pending[0].Key, pending[1].Key, pending[2].Key})
}

func TestSubtaskMeetingsAreScheduledByKey(t *testing.T) {
	f := newFixture(t, true)
	parent := model.Task{ID: "p", Name: "Offsite", Status: model.StatusInProgress, Subtasks: []model.Task{
		testutil.Meeting("kickoff", "Kickoff", base.Add(time.Hour)),
	}}
	f.sched.Reconcile(snap(parent))
	pending := f.sched.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, snapshot.SubtaskKey("p", "kickoff"), pending[0].Key)
}

func TestCustomLead(t *testing.T) {
	f := newFixture(t, true, WithLead(15*time.Minute))
	f.sched.Reconcile(snap(testutil.Meeting("m1", "Planning", base.Add(time.Hour))))
	f.delayer.Advance(45 * time.Minute)

	items := f.recorder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Meeting in 15 minutes", items[0].Title)
}

func TestHumanLead(t *testing.T) {
	assert.Equal(t, "1 minute", humanLead(time.Minute))
	assert.Equal(t, "5 minutes", humanLead(5*time.Minute))
	assert.Equal(t, "1m30s", humanLead(90*time.Second))
}
