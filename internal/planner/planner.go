// Package planner implements the task actions shared by the CLI and the
// command palette on top of the SQLite store.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/mellow/internal/commands"
	"github.com/sandeepkv93/mellow/internal/logger"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/stats"
	"github.com/sandeepkv93/mellow/internal/storage"
)

var (
	ErrAmbiguousTarget = errors.New("planner: target matches more than one task")
	ErrUnknownTarget   = errors.New("planner: no task matches target")
	ErrUnknownProject  = errors.New("planner: unknown project")
	ErrProjectExists   = errors.New("planner: project already exists")
)

// minPrefix is the shortest id prefix accepted as a target.
const minPrefix = 4

type Option func(*Planner)

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(p *Planner) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func WithIDs(newID func() string) Option {
	return func(p *Planner) { p.newID = newID }
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Planner) {
		if log != nil {
			p.log = log
		}
	}
}

type Planner struct {
	repo  *storage.SQLiteRepository
	now   func() time.Time
	loc   *time.Location
	newID func() string
	log   *slog.Logger
}

func New(repo *storage.SQLiteRepository, opts ...Option) *Planner {
	p := &Planner{
		repo:  repo,
		now:   time.Now,
		loc:   time.Local,
		newID: uuid.NewString,
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Today is the current day in the planner's location.
func (p *Planner) Today() model.Day {
	return model.DayOf(p.now().In(p.loc))
}

func (p *Planner) Day(ctx context.Context, day model.Day) ([]model.Task, error) {
	return p.repo.LoadDay(ctx, day)
}

func (p *Planner) Add(ctx context.Context, day model.Day, name, project string) (model.Task, error) {
	projectID, err := p.projectID(ctx, project)
	if err != nil {
		return model.Task{}, err
	}
	task := model.Task{
		ID:        p.newID(),
		Name:      strings.TrimSpace(name),
		Status:    model.StatusNotStarted,
		Day:       day,
		ProjectID: projectID,
		CreatedAt: p.now().UTC(),
	}
	if err := p.repo.SaveTask(ctx, task); err != nil {
		return model.Task{}, fmt.Errorf("add task: %w", err)
	}
	p.log.Info("task added", "id", task.ID, "day", day)
	return task, nil
}

func (p *Planner) AddSubtask(ctx context.Context, day model.Day, parent commands.Target, name string) (model.Task, error) {
	task, err := p.resolve(ctx, day, parent.Task)
	if err != nil {
		return model.Task{}, err
	}
	task.Subtasks = append(task.Subtasks, model.Task{
		ID:        p.newID(),
		Name:      strings.TrimSpace(name),
		Status:    model.StatusNotStarted,
		Day:       task.Day,
		CreatedAt: p.now().UTC(),
	})
	if err := p.repo.SaveTask(ctx, task); err != nil {
		return model.Task{}, fmt.Errorf("add subtask: %w", err)
	}
	return task, nil
}

// SetStatus moves the targeted task or subtask and returns the stored parent.
func (p *Planner) SetStatus(ctx context.Context, day model.Day, target commands.Target, status model.Status) (model.Task, error) {
	task, err := p.resolve(ctx, day, target.Task)
	if err != nil {
		return model.Task{}, err
	}
	at := p.now()
	if target.Sub == "" {
		return p.repo.SetTaskStatus(ctx, task.ID, status, at)
	}
	sub, err := resolveSub(task, target.Sub)
	if err != nil {
		return model.Task{}, err
	}
	return p.repo.SetSubtaskStatus(ctx, task.ID, sub.ID, status, at)
}

// Meet schedules a meeting on day at the clock time in the planner's
// location. The meeting time is kept in StartedAt.
func (p *Planner) Meet(ctx context.Context, day model.Day, name string, clock time.Time) (model.Task, error) {
	start := day.Start(p.loc)
	if start.IsZero() {
		return model.Task{}, fmt.Errorf("%w: %q", model.ErrInvalidDay, day)
	}
	at := time.Date(start.Year(), start.Month(), start.Day(), clock.Hour(), clock.Minute(), 0, 0, p.loc).UTC()
	task := model.Task{
		ID:        p.newID(),
		Name:      strings.TrimSpace(name),
		Status:    model.StatusMeeting,
		Day:       day,
		StartedAt: &at,
		CreatedAt: p.now().UTC(),
	}
	if err := p.repo.SaveTask(ctx, task); err != nil {
		return model.Task{}, fmt.Errorf("add meeting: %w", err)
	}
	return task, nil
}

func (p *Planner) CreateProject(ctx context.Context, name, color string) (model.Project, error) {
	project := model.Project{
		ID:        p.newID(),
		Name:      strings.TrimSpace(name),
		Color:     strings.TrimSpace(color),
		CreatedAt: p.now().UTC(),
	}
	if err := project.Validate(); err != nil {
		return model.Project{}, err
	}
	existing, err := p.repo.FindProjectByName(ctx, project.Name)
	switch {
	case err == nil:
		return model.Project{}, fmt.Errorf("%w: %s", ErrProjectExists, existing.Name)
	case !errors.Is(err, storage.ErrNotFound):
		return model.Project{}, err
	}
	if err := p.repo.CreateProject(ctx, storage.Project(project)); err != nil {
		return model.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (p *Planner) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := p.repo.ListProjects(ctx, storage.ProjectListFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Project(row))
	}
	return out, nil
}

// DeleteProject removes the named project. Its tasks stay, without a project.
func (p *Planner) DeleteProject(ctx context.Context, name string) error {
	project, err := p.repo.FindProjectByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	if err != nil {
		return err
	}
	if err := p.repo.DeleteProject(ctx, project.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	p.log.Info("project deleted", "project", project.Name)
	return nil
}

func (p *Planner) Stats(ctx context.Context, from, to model.Day) (stats.Summary, error) {
	tasks, err := p.repo.LoadRange(ctx, from, to)
	if err != nil {
		return stats.Summary{}, err
	}
	projects, err := p.Projects(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(tasks, from, to, projects), nil
}

// Handlers binds the palette verbs to day.
func (p *Planner) Handlers(ctx context.Context, day model.Day) commands.Handlers {
	return commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			task, err := p.Add(ctx, day, a.Name, a.Project)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "added: " + task.Name}, nil
		},
		Sub: func(a commands.SubArgs) (commands.Result, error) {
			task, err := p.AddSubtask(ctx, day, a.Parent, a.Name)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("subtask added to %s: %s", task.Name, a.Name)}, nil
		},
		Status: func(a commands.StatusArgs) (commands.Result, error) {
			if _, err := p.SetStatus(ctx, day, a.Target, a.Status); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("%s -> %s", a.Target, strings.ToLower(string(a.Status)))}, nil
		},
		Meet: func(a commands.MeetArgs) (commands.Result, error) {
			task, err := p.Meet(ctx, day, a.Name, a.Clock)
			if err != nil {
				return commands.Result{}, err
			}
			at, _ := task.MeetingTime()
			return commands.Result{Message: fmt.Sprintf("meeting %s at %s", task.Name, at.In(p.loc).Format("15:04"))}, nil
		},
		Project: func(a commands.ProjectArgs) (commands.Result, error) {
			project, err := p.CreateProject(ctx, a.Name, a.Color)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "project created: " + project.Name}, nil
		},
	}
}

func (p *Planner) projectID(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	project, err := p.repo.FindProjectByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	if err != nil {
		return "", err
	}
	return project.ID, nil
}

// resolve finds a top-level task of day by 1-based position, exact id, or a
// unique id prefix.
func (p *Planner) resolve(ctx context.Context, day model.Day, ref string) (model.Task, error) {
	tasks, err := p.repo.LoadDay(ctx, day)
	if err != nil {
		return model.Task{}, err
	}
	return pick(tasks, ref)
}

func resolveSub(task model.Task, ref string) (model.Task, error) {
	sub, err := pick(task.Subtasks, ref)
	if err != nil {
		return model.Task{}, fmt.Errorf("subtask of %s: %w", task.Name, err)
	}
	return sub, nil
}

func pick(tasks []model.Task, ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(tasks) {
			return model.Task{}, fmt.Errorf("%w: %s", ErrUnknownTarget, ref)
		}
		return tasks[n-1], nil
	}
	var match *model.Task
	for i := range tasks {
		if tasks[i].ID == ref {
			return tasks[i], nil
		}
		if len(ref) >= minPrefix && strings.HasPrefix(tasks[i].ID, ref) {
			if match != nil {
				return model.Task{}, fmt.Errorf("%w: %s", ErrAmbiguousTarget, ref)
			}
			match = &tasks[i]
		}
	}
	if match == nil {
		return model.Task{}, fmt.Errorf("%w: %s", ErrUnknownTarget, ref)
	}
	return *match, nil
}
