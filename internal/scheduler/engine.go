package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidTriggerTime = errors.New("scheduler: invalid trigger time")
	ErrStopped            = errors.New("scheduler: engine stopped")
)

// Event is a due callback. The engine never runs callbacks itself: the
// consumer of C() calls Fire, which keeps every callback on the consumer's
// goroutine (the tea update loop, or the watch pump).
type Event struct {
	ID        uint64
	Key       string
	TriggerAt time.Time
	fire      func()
}

func (ev Event) Fire() {
	if ev.fire != nil {
		ev.fire()
	}
}

type queueItem struct {
	event Event
	index int
}

type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].event.TriggerAt.Equal(pq[j].event.TriggerAt) {
		return pq[i].event.ID < pq[j].event.ID
	}
	return pq[i].event.TriggerAt.Before(pq[j].event.TriggerAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

type Engine struct {
	mu        sync.Mutex
	queue     priorityQueue
	items     map[uint64]*queueItem
	nextID    uint64
	now       func() time.Time
	out       chan Event
	wakeup    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	stopped   bool
	delivered uint64
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:  make(priorityQueue, 0),
		items:  make(map[uint64]*queueItem),
		now:    time.Now,
		out:    make(chan Event, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (e *Engine) C() <-chan Event {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// Schedule queues fn to be emitted at the given time and returns an id
// usable with Cancel.
func (e *Engine) Schedule(key string, at time.Time, fn func()) (uint64, error) {
	if at.IsZero() {
		return 0, ErrInvalidTriggerTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return 0, ErrStopped
	}

	e.nextID++
	item := &queueItem{event: Event{ID: e.nextID, Key: key, TriggerAt: at, fire: fn}}
	heap.Push(&e.queue, item)
	e.items[item.event.ID] = item
	e.signalWakeup()
	return item.event.ID, nil
}

// Cancel removes a queued event. It reports false when the event already
// left the queue; callers that need a hard guarantee must also check for
// staleness inside the callback.
func (e *Engine) Cancel(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[id]
	if !ok {
		return false
	}
	heap.Remove(&e.queue, item.index)
	delete(e.items, id)
	e.signalWakeup()
	return true
}

// AfterFunc adapts the engine to the "run after d, return a cancel handle"
// shape used by the meetings scheduler. An engine that has been stopped
// returns a no-op cancel and never runs fn.
func (e *Engine) AfterFunc(d time.Duration, fn func()) func() {
	id, err := e.Schedule("", e.now().Add(d), fn)
	if err != nil {
		return func() {}
	}
	return func() { e.Cancel(id) }
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) Delivered() uint64 {
	return atomic.LoadUint64(&e.delivered)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := next.TriggerAt.Sub(e.now())
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			due := e.popDue(e.now())
			for _, ev := range due {
				// A full buffer applies back-pressure instead of dropping:
				// a lost reminder would leave its owner waiting forever.
				select {
				case e.out <- ev:
					atomic.AddUint64(&e.delivered, 1)
				case <-e.stopCh:
					return
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			stopTimer(timer)
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Event{}, false
	}
	return e.queue[0].event, true
}

func (e *Engine) popDue(now time.Time) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Event, 0)
	for len(e.queue) > 0 {
		next := e.queue[0].event
		if next.TriggerAt.After(now) {
			break
		}
		item := heap.Pop(&e.queue).(*queueItem)
		delete(e.items, item.event.ID)
		out = append(out, item.event)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// Pump runs every event's callback on the calling goroutine until the
// engine is stopped or done is closed.
func Pump(e *Engine, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-e.C():
			if !ok {
				return
			}
			ev.Fire()
		case <-done:
			return
		}
	}
}
