package storage

import "time"

type Task struct {
	ID          string
	Name        string
	Status      string
	Day         string
	ProjectID   string
	Position    int
	PlannedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Subtask ids are unique per parent task only.
type Subtask struct {
	ID          string
	TaskID      string
	Name        string
	Status      string
	Position    int
	PlannedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

type Project struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
}

// TaskListFilter selects tasks by day range (inclusive, YYYY-MM-DD), project
// and status. Empty fields do not filter.
type TaskListFilter struct {
	From      string
	To        string
	ProjectID string
	Status    string
	Limit     int
	Offset    int
}

type ProjectListFilter struct {
	Limit  int
	Offset int
}
