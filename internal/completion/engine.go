// Package completion detects tasks that moved into the completed state
// between two snapshots of the same day.
//
// The first snapshot an Engine sees has nothing to compare against, so every
// task that is already completed is reported. Callers that restart (a page
// reload, a new TUI session) therefore receive "currently completed" on the
// first call and "newly completed" afterwards.
package completion

import (
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/snapshot"
)

// Engine holds the previous snapshot. It is not safe for concurrent use; the
// reconcile controller serializes calls.
type Engine struct {
	prev   snapshot.Snapshot
	seeded bool
}

func NewEngine() *Engine {
	return &Engine{}
}

// Observe returns the keys that are newly completed in next, in snapshot
// order, and then replaces the stored snapshot with next.
func (e *Engine) Observe(next snapshot.Snapshot) []string {
	out := make([]string, 0)
	next.Each(func(cur snapshot.Entry) bool {
		if cur.Task.Status != model.StatusCompleted {
			return true
		}
		if !e.seeded {
			out = append(out, cur.Key)
			return true
		}
		old, existed := e.prev.Get(cur.Key)
		if !existed || old.Task.Status != model.StatusCompleted {
			out = append(out, cur.Key)
		}
		return true
	})

	e.prev = next
	e.seeded = true
	return out
}

// Seeded reports whether Observe has been called since construction or the
// last Reset.
func (e *Engine) Seeded() bool {
	return e.seeded
}

// Reset drops the stored snapshot; the next Observe seeds again.
func (e *Engine) Reset() {
	e.prev = snapshot.Snapshot{}
	e.seeded = false
}
