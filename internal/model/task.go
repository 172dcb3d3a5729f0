package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus = errors.New("model: invalid task status")
	ErrInvalidDay    = errors.New("model: invalid day")
	ErrNestedSubtask = errors.New("model: subtasks cannot have subtasks")
)

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusMeeting    Status = "MEETING"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusCancelled, StatusMeeting:
		return true
	default:
		return false
	}
}

// ParseStatus accepts the canonical upper-case form as well as the
// lower-case, dash or space separated spellings used on the command line.
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	s := Status(norm)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

type Task struct {
	ID          string
	Name        string
	Status      Status
	Day         Day
	ProjectID   string
	PlannedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	Subtasks    []Task
}

func (t Task) Validate() error {
	if err := t.validateFields(); err != nil {
		return err
	}
	if !t.Day.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDay, t.Day)
	}
	for i, sub := range t.Subtasks {
		if err := sub.validateFields(); err != nil {
			return fmt.Errorf("subtask %d: %w", i, err)
		}
		if len(sub.Subtasks) > 0 {
			return fmt.Errorf("subtask %d: %w", i, ErrNestedSubtask)
		}
	}
	return nil
}

func (t Task) validateFields() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("model: task name is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	return nil
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// MeetingTime returns the scheduled time of a meeting. Meetings keep their
// scheduled time in StartedAt; nothing else should read that field as a
// meeting time.
func (t Task) MeetingTime() (time.Time, bool) {
	if t.Status != StatusMeeting || t.StartedAt == nil || t.StartedAt.IsZero() {
		return time.Time{}, false
	}
	return *t.StartedAt, true
}

// TrackedDuration is the wall time between start and completion of a
// finished piece of work. Meetings and unfinished tasks report zero.
func (t Task) TrackedDuration() time.Duration {
	if t.Status != StatusCompleted || t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	d := t.CompletedAt.Sub(*t.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Transition returns a copy of t moved to status s at the given instant,
// stamping the time-tracking fields the way the store expects them.
func (t Task) Transition(s Status, at time.Time) Task {
	out := t
	at = at.UTC()
	if t.Status == StatusMeeting && s != StatusMeeting {
		// StartedAt held the meeting time, not a work start.
		out.StartedAt = nil
	}
	switch s {
	case StatusInProgress:
		if out.StartedAt == nil {
			out.StartedAt = &at
		}
		out.CompletedAt = nil
	case StatusCompleted:
		if out.StartedAt == nil {
			out.StartedAt = &at
		}
		out.CompletedAt = &at
	case StatusNotStarted, StatusCancelled:
		out.CompletedAt = nil
	}
	out.Status = s
	return out
}

func (t Task) FindSubtask(id string) (Task, int, bool) {
	for i, sub := range t.Subtasks {
		if sub.ID == id {
			return sub, i, true
		}
	}
	return Task{}, -1, false
}
