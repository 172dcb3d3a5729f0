package update

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/mellow/internal/meetings"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/reconcile"
	"github.com/sandeepkv93/mellow/internal/snapshot"
)

// Bridge turns controller callbacks into tea messages. Callbacks block
// until the update loop takes the message or the bridge is closed, so
// nothing is dropped while the program runs.
type Bridge struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewBridge(buffer int) *Bridge {
	if buffer < 0 {
		buffer = 0
	}
	return &Bridge{
		ch:   make(chan tea.Msg, buffer),
		done: make(chan struct{}),
	}
}

func (b *Bridge) C() <-chan tea.Msg {
	return b.ch
}

func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Close releases any callback blocked on a full channel. Messages sent
// afterwards are discarded.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) Handlers() reconcile.Handlers {
	return reconcile.Handlers{
		OnSnapshot: func(day model.Day, s snapshot.Snapshot) {
			b.send(SnapshotMsg{Day: day, Snapshot: s})
		},
		OnCompletions: func(keys []string) {
			b.send(CompletionsMsg{Keys: keys})
		},
		OnMeetingsChanged: func(pending []meetings.Pending) {
			b.send(MeetingsChangedMsg{Pending: pending})
		},
		OnError: func(err error) {
			b.send(FeedErrorMsg{Err: err})
		},
	}
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}

func waitForEventCmd(ch <-chan tea.Msg, done <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return msg
		case <-done:
			return nil
		}
	}
}
