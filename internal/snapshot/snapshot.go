// Package snapshot flattens a day's task list, subtasks included, into an
// immutable keyed view that can be compared across feed deliveries.
package snapshot

import (
	"strconv"

	"github.com/sandeepkv93/mellow/internal/model"
)

const subtaskSep = "/"

// Entry is one flattened task. ParentID is empty for top-level tasks.
type Entry struct {
	Key      string
	ParentID string
	Task     model.Task
}

func (e Entry) IsSubtask() bool { return e.ParentID != "" }

// Snapshot is a point-in-time, read-only view of all tasks for one day.
// Iteration follows the order of the input list, each task followed by its
// subtasks.
type Snapshot struct {
	order   []string
	entries map[string]Entry
}

func SubtaskKey(parentID, subtaskID string) string {
	return parentID + subtaskSep + subtaskID
}

// Normalize builds a Snapshot from raw day records. Nil and empty subtask
// lists are equivalent. Duplicate top-level IDs keep their first occurrence;
// a composed subtask key that collides with an existing key gets a numeric
// suffix.
func Normalize(tasks []model.Task) Snapshot {
	s := Snapshot{
		order:   make([]string, 0, len(tasks)),
		entries: make(map[string]Entry, len(tasks)),
	}

	top := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		top[t.ID] = true
	}

	for _, t := range tasks {
		if _, dup := s.entries[t.ID]; dup {
			continue
		}
		s.add(Entry{Key: t.ID, Task: flat(t)})
		for _, sub := range t.Subtasks {
			key := SubtaskKey(t.ID, sub.ID)
			if top[key] || s.has(key) {
				key = s.freeKey(key, top)
			}
			s.add(Entry{Key: key, ParentID: t.ID, Task: flat(sub)})
		}
	}
	return s
}

func flat(t model.Task) model.Task {
	t.Subtasks = nil
	return t
}

func (s *Snapshot) add(e Entry) {
	s.order = append(s.order, e.Key)
	s.entries[e.Key] = e
}

func (s *Snapshot) has(key string) bool {
	_, ok := s.entries[key]
	return ok
}

func (s *Snapshot) freeKey(base string, reserved map[string]bool) string {
	for n := 2; ; n++ {
		candidate := base + "~" + strconv.Itoa(n)
		if !reserved[candidate] && !s.has(candidate) {
			return candidate
		}
	}
}

func (s Snapshot) Len() int { return len(s.order) }

func (s Snapshot) IsZero() bool { return s.entries == nil }

func (s Snapshot) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

func (s Snapshot) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k])
	}
	return out
}

// Each calls fn for every entry in iteration order until fn returns false.
func (s Snapshot) Each(fn func(Entry) bool) {
	for _, k := range s.order {
		if !fn(s.entries[k]) {
			return
		}
	}
}

// TopLevel returns the top-level tasks only, in input order.
func (s Snapshot) TopLevel() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		if e := s.entries[k]; !e.IsSubtask() {
			out = append(out, e)
		}
	}
	return out
}

// Children returns the subtasks of parentID in input order.
func (s Snapshot) Children(parentID string) []Entry {
	out := make([]Entry, 0)
	for _, k := range s.order {
		if e := s.entries[k]; e.ParentID == parentID && parentID != "" {
			out = append(out, e)
		}
	}
	return out
}
