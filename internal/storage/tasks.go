package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/mellow/internal/model"
)

// SaveTask creates or replaces t together with its subtasks in one
// transaction.
func (r *SQLiteRepository) SaveTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	row, subs := fromModel(t)

	var oldDay string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getTask(ctx, tx, row.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			if err := insertTask(ctx, tx, row); err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
		case err != nil:
			return err
		default:
			oldDay = existing.Day
			if row.Position == 0 {
				row.Position = existing.Position
			}
			if err := updateTask(ctx, tx, row); err != nil {
				return fmt.Errorf("update task: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, row.ID); err != nil {
			return fmt.Errorf("clear subtasks: %w", err)
		}
		for _, sub := range subs {
			if err := insertSubtask(ctx, tx, sub); err != nil {
				return fmt.Errorf("insert subtask %s: %w", sub.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.changed(oldDay, row.Day)
	return nil
}

func (r *SQLiteRepository) LoadTask(ctx context.Context, id string) (model.Task, error) {
	row, err := r.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	subs, err := r.ListSubtasks(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	return toModel(row, subs), nil
}

// LoadDay returns the tasks of day in display order with subtasks attached.
func (r *SQLiteRepository) LoadDay(ctx context.Context, day model.Day) ([]model.Task, error) {
	return r.LoadRange(ctx, day, day)
}

func (r *SQLiteRepository) LoadRange(ctx context.Context, from, to model.Day) ([]model.Task, error) {
	return r.LoadTasks(ctx, TaskListFilter{From: string(from), To: string(to)})
}

// LoadTasks reads tasks and their subtasks inside one transaction so the
// result never mixes rows from before and after a concurrent write.
func (r *SQLiteRepository) LoadTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error) {
	var rows []Task
	var subs map[string][]Subtask
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if rows, err = listTasks(ctx, tx, filter); err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if subs, err = subtasksFor(ctx, tx, filter); err != nil {
			return fmt.Errorf("list subtasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, toModel(row, subs[row.ID]))
	}
	return out, nil
}

func subtasksFor(ctx context.Context, q dbtx, filter TaskListFilter) (map[string][]Subtask, error) {
	query := `
		SELECT s.id, s.task_id, s.name, s.status, s.position, s.planned_at, s.started_at, s.completed_at, s.created_at
		FROM subtasks s JOIN tasks t ON t.id = s.task_id`
	clauses, args := taskClauses(filter)
	for i, c := range clauses {
		clauses[i] = "t." + c
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY s.task_id, s.position ASC, s.created_at ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]Subtask)
	for rows.Next() {
		item, scanErr := scanSubtask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out[item.TaskID] = append(out[item.TaskID], item)
	}
	return out, rows.Err()
}

// SetTaskStatus moves a task to s, stamping start and completion times, and
// returns the task as stored afterwards.
func (r *SQLiteRepository) SetTaskStatus(ctx context.Context, id string, s model.Status, at time.Time) (model.Task, error) {
	if !s.IsValid() {
		return model.Task{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, s)
	}
	row, err := r.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	moved := toModel(row, nil).Transition(s, at)
	row.Status = string(moved.Status)
	row.StartedAt = moved.StartedAt
	row.CompletedAt = moved.CompletedAt
	if err := r.UpdateTask(ctx, row); err != nil {
		return model.Task{}, err
	}
	return r.LoadTask(ctx, id)
}

func (r *SQLiteRepository) SetSubtaskStatus(ctx context.Context, taskID, subID string, s model.Status, at time.Time) (model.Task, error) {
	if !s.IsValid() {
		return model.Task{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, s)
	}
	sub, err := r.GetSubtask(ctx, taskID, subID)
	if err != nil {
		return model.Task{}, err
	}
	moved := model.Task{Status: model.Status(sub.Status), StartedAt: sub.StartedAt, CompletedAt: sub.CompletedAt}.Transition(s, at)
	sub.Status = string(moved.Status)
	sub.StartedAt = moved.StartedAt
	sub.CompletedAt = moved.CompletedAt
	if err := r.UpdateSubtask(ctx, sub); err != nil {
		return model.Task{}, err
	}
	return r.LoadTask(ctx, taskID)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func toModel(row Task, subs []Subtask) model.Task {
	out := model.Task{
		ID:          row.ID,
		Name:        row.Name,
		Status:      model.Status(row.Status),
		Day:         model.Day(row.Day),
		ProjectID:   row.ProjectID,
		PlannedAt:   row.PlannedAt,
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt,
		CreatedAt:   row.CreatedAt,
	}
	for _, s := range subs {
		out.Subtasks = append(out.Subtasks, model.Task{
			ID:          s.ID,
			Name:        s.Name,
			Status:      model.Status(s.Status),
			Day:         out.Day,
			ProjectID:   out.ProjectID,
			PlannedAt:   s.PlannedAt,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
			CreatedAt:   s.CreatedAt,
		})
	}
	return out
}

// fromModel assigns subtask positions from slice order.
func fromModel(t model.Task) (Task, []Subtask) {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	row := Task{
		ID:          t.ID,
		Name:        t.Name,
		Status:      string(t.Status),
		Day:         string(t.Day),
		ProjectID:   t.ProjectID,
		PlannedAt:   t.PlannedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		CreatedAt:   created,
	}
	subs := make([]Subtask, 0, len(t.Subtasks))
	for i, s := range t.Subtasks {
		subCreated := s.CreatedAt
		if subCreated.IsZero() {
			subCreated = created
		}
		subs = append(subs, Subtask{
			ID:          s.ID,
			TaskID:      t.ID,
			Name:        s.Name,
			Status:      string(s.Status),
			Position:    i + 1,
			PlannedAt:   s.PlannedAt,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
			CreatedAt:   subCreated,
		})
	}
	return row, subs
}
