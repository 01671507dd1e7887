package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/relaysync/conductor/domain/checkpoint"
)

// CheckpointStore is a SQLite-backed implementation of checkpoint.Store.
type CheckpointStore struct {
	db *sql.DB
}

// NewCheckpointStore creates a new SQLite checkpoint store.
func NewCheckpointStore(cfg Config, opts ...Option) (*CheckpointStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &CheckpointStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *CheckpointStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_task ON checkpoints(task_id, iteration);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Save persists a checkpoint.
func (s *CheckpointStore) Save(ctx context.Context, c checkpoint.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO checkpoints (id, task_id, iteration, data) VALUES (?, ?, ?, ?)",
		c.ID, c.TaskID, c.Iteration, data,
	)
	return err
}

// Latest returns the highest-iteration checkpoint for taskID.
func (s *CheckpointStore) Latest(ctx context.Context, taskID string) (checkpoint.Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Checkpoint{}, false, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM checkpoints WHERE task_id = ? ORDER BY iteration DESC LIMIT 1", taskID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, err
	}
	var c checkpoint.Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return checkpoint.Checkpoint{}, false, err
	}
	return c, true, nil
}

// List returns every checkpoint for taskID, oldest iteration first.
func (s *CheckpointStore) List(ctx context.Context, taskID string) ([]checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM checkpoints WHERE task_id = ? ORDER BY iteration ASC", taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []checkpoint.Checkpoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c checkpoint.Checkpoint
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Prune deletes all but the keep most recent (by iteration) checkpoints
// for taskID.
func (s *CheckpointStore) Prune(ctx context.Context, taskID string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM checkpoints WHERE task_id = ? AND id NOT IN (
			SELECT id FROM checkpoints WHERE task_id = ? ORDER BY iteration DESC LIMIT ?
		)`, taskID, taskID, keep)
	return err
}

var _ checkpoint.Store = (*CheckpointStore)(nil)
