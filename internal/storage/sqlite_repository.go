package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB

	watchMu   sync.Mutex
	watchers  map[int]func(day string)
	nextWatch int
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db, watchers: make(map[int]func(string))}, nil
}

// OpenSQLite opens path and applies pending migrations.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps PRAGMAs and writes on the same handle.
	db.SetMaxOpenConns(1)
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Watch registers fn to run after every committed write, with the day the
// write touched. fn runs on the writer's goroutine and must not block.
func (r *SQLiteRepository) Watch(fn func(day string)) (cancel func()) {
	r.watchMu.Lock()
	r.nextWatch++
	id := r.nextWatch
	r.watchers[id] = fn
	r.watchMu.Unlock()
	return func() {
		r.watchMu.Lock()
		delete(r.watchers, id)
		r.watchMu.Unlock()
	}
}

func (r *SQLiteRepository) changed(days ...string) {
	r.watchMu.Lock()
	fns := make([]func(string), 0, len(r.watchers))
	for _, fn := range r.watchers {
		fns = append(fns, fn)
	}
	r.watchMu.Unlock()

	seen := make(map[string]bool, len(days))
	for _, day := range days {
		if day == "" || seen[day] {
			continue
		}
		seen[day] = true
		for _, fn := range fns {
			fn(day)
		}
	}
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, in Task) error {
	if err := insertTask(ctx, r.db, in); err != nil {
		return err
	}
	r.changed(in.Day)
	return nil
}

func insertTask(ctx context.Context, q dbtx, in Task) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tasks (id, name, status, day, project_id, position, planned_at, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?,
			COALESCE(NULLIF(?, 0), (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE day = ?)),
			?, ?, ?, ?)`,
		in.ID, in.Name, in.Status, in.Day, nullString(in.ProjectID),
		in.Position, in.Day,
		nullTime(in.PlannedAt), nullTime(in.StartedAt), nullTime(in.CompletedAt), mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (Task, error) {
	return getTask(ctx, r.db, id)
}

func getTask(ctx context.Context, q dbtx, id string) (Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, status, day, project_id, position, planned_at, started_at, completed_at, created_at
		FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return task, nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, in Task) error {
	old, err := r.GetTask(ctx, in.ID)
	if err != nil {
		return err
	}
	if err := updateTask(ctx, r.db, in); err != nil {
		return err
	}
	r.changed(old.Day, in.Day)
	return nil
}

func updateTask(ctx context.Context, q dbtx, in Task) error {
	res, err := q.ExecContext(ctx, `
		UPDATE tasks
		SET name = ?, status = ?, day = ?, project_id = ?, position = ?, planned_at = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		in.Name, in.Status, in.Day, nullString(in.ProjectID), in.Position,
		nullTime(in.PlannedAt), nullTime(in.StartedAt), nullTime(in.CompletedAt), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id string) error {
	old, err := r.GetTask(ctx, id)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	r.changed(old.Day)
	return nil
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]Task, error) {
	return listTasks(ctx, r.db, filter)
}

func listTasks(ctx context.Context, q dbtx, filter TaskListFilter) ([]Task, error) {
	query := `SELECT id, name, status, day, project_id, position, planned_at, started_at, completed_at, created_at FROM tasks`
	clauses, args := taskClauses(filter)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY day ASC, position ASC, created_at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func taskClauses(filter TaskListFilter) ([]string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if filter.From != "" {
		clauses = append(clauses, "day >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		clauses = append(clauses, "day <= ?")
		args = append(args, filter.To)
	}
	if filter.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	return clauses, args
}

func (r *SQLiteRepository) CreateSubtask(ctx context.Context, in Subtask) error {
	parent, err := r.GetTask(ctx, in.TaskID)
	if err != nil {
		return err
	}
	if err := insertSubtask(ctx, r.db, in); err != nil {
		return err
	}
	r.changed(parent.Day)
	return nil
}

func insertSubtask(ctx context.Context, q dbtx, in Subtask) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO subtasks (id, task_id, name, status, position, planned_at, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?,
			COALESCE(NULLIF(?, 0), (SELECT COALESCE(MAX(position), 0) + 1 FROM subtasks WHERE task_id = ?)),
			?, ?, ?, ?)`,
		in.ID, in.TaskID, in.Name, in.Status,
		in.Position, in.TaskID,
		nullTime(in.PlannedAt), nullTime(in.StartedAt), nullTime(in.CompletedAt), mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetSubtask(ctx context.Context, taskID, id string) (Subtask, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, name, status, position, planned_at, started_at, completed_at, created_at
		FROM subtasks WHERE task_id = ? AND id = ?`, taskID, id)
	item, err := scanSubtask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subtask{}, ErrNotFound
		}
		return Subtask{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateSubtask(ctx context.Context, in Subtask) error {
	parent, err := r.GetTask(ctx, in.TaskID)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE subtasks
		SET name = ?, status = ?, position = ?, planned_at = ?, started_at = ?, completed_at = ?
		WHERE task_id = ? AND id = ?`,
		in.Name, in.Status, in.Position,
		nullTime(in.PlannedAt), nullTime(in.StartedAt), nullTime(in.CompletedAt), in.TaskID, in.ID,
	)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	r.changed(parent.Day)
	return nil
}

func (r *SQLiteRepository) DeleteSubtask(ctx context.Context, taskID, id string) error {
	parent, err := r.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ? AND id = ?`, taskID, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	r.changed(parent.Day)
	return nil
}

func (r *SQLiteRepository) ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, name, status, position, planned_at, started_at, completed_at, created_at
		FROM subtasks WHERE task_id = ?
		ORDER BY position ASC, created_at ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Subtask, 0)
	for rows.Next() {
		item, scanErr := scanSubtask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, in Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, color, created_at)
		VALUES (?, ?, ?, ?)`,
		in.ID, in.Name, in.Color, mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, color, created_at FROM projects WHERE id = ?`, id)
	return scanProjectRow(row)
}

func (r *SQLiteRepository) FindProjectByName(ctx context.Context, name string) (Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, color, created_at FROM projects WHERE name = ? COLLATE NOCASE`, name)
	return scanProjectRow(row)
}

func scanProjectRow(row *sql.Row) (Project, error) {
	item, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return item, nil
}

// DeleteProject detaches the project's tasks before removing it.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	days, err := r.projectDays(ctx, id)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	r.changed(days...)
	return nil
}

func (r *SQLiteRepository) projectDays(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT day FROM tasks WHERE project_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListProjects(ctx context.Context, filter ProjectListFilter) ([]Project, error) {
	args := make([]any, 0, 2)
	query := `SELECT id, name, color, created_at FROM projects ORDER BY name ASC` + applyPagination(&args, filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Project, 0)
	for rows.Next() {
		item, scanErr := scanProject(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		if limit <= 0 {
			sql += " LIMIT -1"
		}
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var out Task
	var project sql.NullString
	var planned, started, completed sql.NullString
	var created string
	if err := s.Scan(&out.ID, &out.Name, &out.Status, &out.Day, &project, &out.Position, &planned, &started, &completed, &created); err != nil {
		return Task{}, err
	}
	out.ProjectID = project.String
	times, err := parseTimes(planned, started, completed)
	if err != nil {
		return Task{}, err
	}
	out.PlannedAt, out.StartedAt, out.CompletedAt = times[0], times[1], times[2]
	if out.CreatedAt, err = parseRequiredTime(created); err != nil {
		return Task{}, err
	}
	return out, nil
}

func scanSubtask(s scanner) (Subtask, error) {
	var out Subtask
	var planned, started, completed sql.NullString
	var created string
	if err := s.Scan(&out.ID, &out.TaskID, &out.Name, &out.Status, &out.Position, &planned, &started, &completed, &created); err != nil {
		return Subtask{}, err
	}
	times, err := parseTimes(planned, started, completed)
	if err != nil {
		return Subtask{}, err
	}
	out.PlannedAt, out.StartedAt, out.CompletedAt = times[0], times[1], times[2]
	if out.CreatedAt, err = parseRequiredTime(created); err != nil {
		return Subtask{}, err
	}
	return out, nil
}

func parseTimes(values ...sql.NullString) ([]*time.Time, error) {
	out := make([]*time.Time, len(values))
	for i, v := range values {
		tm, err := parseNullableTime(v)
		if err != nil {
			return nil, err
		}
		out[i] = tm
	}
	return out, nil
}

func scanProject(s scanner) (Project, error) {
	var out Project
	var created string
	if err := s.Scan(&out.ID, &out.Name, &out.Color, &created); err != nil {
		return Project{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Project{}, err
	}
	out.CreatedAt = createdAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
