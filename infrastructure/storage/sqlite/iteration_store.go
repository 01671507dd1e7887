package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/relaysync/conductor/domain/iteration"
)

// IterationStore is a SQLite-backed implementation of iteration.Store.
type IterationStore struct {
	db *sql.DB
}

// NewIterationStore creates a new SQLite iteration store.
func NewIterationStore(cfg Config, opts ...Option) (*IterationStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &IterationStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *IterationStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS iterations (
			task_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (task_id, sequence)
		);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Append records one iteration for taskID.
func (s *IterationStore) Append(ctx context.Context, taskID string, r iteration.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO iterations (task_id, sequence, data) VALUES (?, ?, ?)",
		taskID, r.Sequence, data,
	)
	return err
}

// List returns every iteration recorded for taskID, ordered by sequence.
func (s *IterationStore) List(ctx context.Context, taskID string) ([]iteration.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM iterations WHERE task_id = ? ORDER BY sequence ASC", taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []iteration.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r iteration.Record
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ iteration.Store = (*IterationStore)(nil)
