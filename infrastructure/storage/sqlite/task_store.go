package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/relaysync/conductor/domain/task"
)

// TaskStore is a SQLite-backed implementation of task.Store.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore creates a new SQLite task store.
func NewTaskStore(cfg Config, opts ...Option) (*TaskStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &TaskStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewTaskStoreFromDB creates a task store from an existing connection.
func NewTaskStoreFromDB(db *sql.DB) (*TaskStore, error) {
	s := &TaskStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TaskStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			locked_by TEXT,
			sync_version INTEGER NOT NULL DEFAULT 0,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_locked_by ON tasks(locked_by);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Create inserts a new task at version 0.
func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		return task.ErrInvalidID
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, name, status, priority, locked_by, sync_version, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Name, string(t.Status), t.Priority, nullIfEmpty(t.LockedBy), t.SyncVersion, data, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return task.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Get retrieves a task by id.
func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM tasks WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CompareAndSwap applies mutate to the current row under a transaction,
// rejecting if expectedVersion no longer matches the stored version —
// the SQL analog of the teacher's Update's affected-rows check, guarding
// on sync_version rather than on row existence alone.
func (s *TaskStore) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate func(*task.Task) error) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var data []byte
	var version int64
	err = tx.QueryRowContext(ctx, "SELECT data, sync_version FROM tasks WHERE id = ?", id).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if version != expectedVersion {
		return nil, task.ErrVersionConflict
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	if err := mutate(&t); err != nil {
		return nil, err
	}
	t.SyncVersion = version + 1

	newData, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET project_id=?, name=?, status=?, priority=?, locked_by=?, sync_version=?, data=?, updated_at=?
		 WHERE id=? AND sync_version=?`,
		t.ProjectID, t.Name, string(t.Status), t.Priority, nullIfEmpty(t.LockedBy), t.SyncVersion, newData, time.Now().Unix(),
		id, version,
	)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, task.ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a task.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return task.ErrNotFound
	}
	return nil
}

// List returns tasks matching filter.
func (s *TaskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query, args := s.buildListQuery(filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*task.Task
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Count returns the number of tasks matching filter.
func (s *TaskStore) Count(ctx context.Context, filter task.ListFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	query, args := s.buildListQuery(filter, true)
	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Summary returns aggregate statistics across a project's tasks.
func (s *TaskStore) Summary(ctx context.Context, projectID string) (task.Summary, error) {
	if err := ctx.Err(); err != nil {
		return task.Summary{}, err
	}

	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'stuck' THEN 1 ELSE 0 END)
		FROM tasks WHERE project_id = ?
	`
	var sum task.Summary
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&sum.TotalTasks, &sum.PendingTasks, &sum.QueuedTasks, &sum.RunningTasks,
		&sum.CompletedTasks, &sum.FailedTasks, &sum.StuckTasks,
	)
	if err != nil {
		return task.Summary{}, err
	}
	return sum, nil
}

func (s *TaskStore) buildListQuery(filter task.ListFilter, countOnly bool) (string, []any) {
	query := "SELECT data FROM tasks"
	if countOnly {
		query = "SELECT COUNT(*) FROM tasks"
	}

	where, args := s.buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}

	if !countOnly {
		orderBy := "priority"
		switch filter.OrderBy {
		case task.OrderByCreatedAt:
			orderBy = "created_at"
		case task.OrderByID:
			orderBy = "id"
		case task.OrderByStatus:
			orderBy = "status"
		}
		query += " ORDER BY " + orderBy
		if filter.Descending {
			query += " DESC"
		}
		if filter.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, filter.Limit)
		}
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return query, args
}

func (s *TaskStore) buildWhereClause(filter task.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if len(filter.Status) > 0 {
		placeholders := ""
		for i, st := range filter.Status {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "status IN ("+placeholders+")")
	}
	if filter.LockedBy != "" {
		conditions = append(conditions, "locked_by = ?")
		args = append(args, filter.LockedBy)
	}
	if filter.NamePattern != "" {
		conditions = append(conditions, "name LIKE ?")
		args = append(args, "%"+filter.NamePattern+"%")
	}

	where := ""
	for i, c := range conditions {
		if i > 0 {
			where += " AND "
		}
		where += c
	}
	return where, args
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var (
	_ task.Store           = (*TaskStore)(nil)
	_ task.SummaryProvider = (*TaskStore)(nil)
)
