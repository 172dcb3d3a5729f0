package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/mellow/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

type Repository interface {
	CreateTask(ctx context.Context, in Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTask(ctx context.Context, in Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filter TaskListFilter) ([]Task, error)

	CreateSubtask(ctx context.Context, in Subtask) error
	GetSubtask(ctx context.Context, taskID, id string) (Subtask, error)
	UpdateSubtask(ctx context.Context, in Subtask) error
	DeleteSubtask(ctx context.Context, taskID, id string) error
	ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error)

	CreateProject(ctx context.Context, in Project) error
	GetProject(ctx context.Context, id string) (Project, error)
	FindProjectByName(ctx context.Context, name string) (Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, filter ProjectListFilter) ([]Project, error)
}

// Store is the model-level view the CLI, TUI and feed work against.
type Store interface {
	SaveTask(ctx context.Context, t model.Task) error
	LoadTask(ctx context.Context, id string) (model.Task, error)
	LoadDay(ctx context.Context, day model.Day) ([]model.Task, error)
	LoadRange(ctx context.Context, from, to model.Day) ([]model.Task, error)
	SetTaskStatus(ctx context.Context, id string, s model.Status, at time.Time) (model.Task, error)
	SetSubtaskStatus(ctx context.Context, taskID, subID string, s model.Status, at time.Time) (model.Task, error)
}
