package scheduler

import (
	"testing"
	"time"
)

func TestEngineEmitsInTriggerOrder(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now().UTC()
	if _, err := engine.Schedule("later", now.Add(80*time.Millisecond), nil); err != nil {
		t.Fatalf("schedule later: %v", err)
	}
	if _, err := engine.Schedule("sooner", now.Add(20*time.Millisecond), nil); err != nil {
		t.Fatalf("schedule sooner: %v", err)
	}

	first := waitEvent(t, engine.C(), time.Second)
	second := waitEvent(t, engine.C(), time.Second)
	if first.Key != "sooner" || second.Key != "later" {
		t.Fatalf("unexpected order: first=%s second=%s", first.Key, second.Key)
	}
}

func TestEngineCancelRemovesQueuedEvent(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now().UTC()
	cancelled, err := engine.Schedule("cancelled", now.Add(30*time.Millisecond), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := engine.Schedule("kept", now.Add(60*time.Millisecond), nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !engine.Cancel(cancelled) {
		t.Fatal("expected cancel to find queued event")
	}
	if engine.Cancel(cancelled) {
		t.Fatal("second cancel should report false")
	}

	ev := waitEvent(t, engine.C(), time.Second)
	if ev.Key != "kept" {
		t.Fatalf("expected only kept event, got %s", ev.Key)
	}
	if engine.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d", engine.Pending())
	}
}

func TestEngineAfterFuncRunsCallbackOnConsumer(t *testing.T) {
	engine := NewEngine(4)
	engine.Start()
	defer engine.Stop()

	ran := make(chan string, 2)
	engine.AfterFunc(10*time.Millisecond, func() { ran <- "fired" })
	cancel := engine.AfterFunc(20*time.Millisecond, func() { ran <- "cancelled" })
	cancel()

	ev := waitEvent(t, engine.C(), time.Second)
	ev.Fire()
	select {
	case got := <-ran:
		if got != "fired" {
			t.Fatalf("unexpected callback: %s", got)
		}
	default:
		t.Fatal("expected callback to run when the consumer fires the event")
	}

	select {
	case ev := <-engine.C():
		t.Fatalf("unexpected event after cancel: %+v", ev)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestScheduleValidatesTriggerTime(t *testing.T) {
	engine := NewEngine(1)
	if _, err := engine.Schedule("bad", time.Time{}, nil); err != ErrInvalidTriggerTime {
		t.Fatalf("expected ErrInvalidTriggerTime, got %v", err)
	}
}

func TestScheduleAfterStopFails(t *testing.T) {
	engine := NewEngine(1)
	engine.Start()
	engine.Stop()
	if _, err := engine.Schedule("late", time.Now().Add(time.Second), nil); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	cancel := engine.AfterFunc(time.Millisecond, func() { t.Fatal("callback must not run") })
	cancel()
}

func TestPumpFiresUntilDone(t *testing.T) {
	engine := NewEngine(4)
	engine.Start()
	defer engine.Stop()

	fired := make(chan struct{}, 1)
	engine.AfterFunc(5*time.Millisecond, func() { fired <- struct{}{} })

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		Pump(engine, done)
		close(exited)
	}()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pumped callback")
	}
	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("pump did not exit")
	}
}

func waitEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}
