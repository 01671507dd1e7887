package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/relaysync/conductor/domain/synclog"
)

// SyncLogStore is a SQLite-backed implementation of synclog.Store.
type SyncLogStore struct {
	db *sql.DB
}

// NewSyncLogStore creates a new SQLite sync log store.
func NewSyncLogStore(cfg Config, opts ...Option) (*SyncLogStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &SyncLogStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SyncLogStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sync_log (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			logical_clock INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sync_log_project ON sync_log(project_id, logical_clock);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Append adds an entry to the append-only log.
func (s *SyncLogStore) Append(ctx context.Context, e synclog.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO sync_log (id, project_id, logical_clock, data) VALUES (?, ?, ?, ?)",
		e.ID, e.ProjectID, e.LogicalClock, data,
	)
	return err
}

// Tail returns the most recent limit entries for projectID, ordered
// oldest-to-newest within that window.
func (s *SyncLogStore) Tail(ctx context.Context, projectID string, limit int) ([]synclog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := "SELECT data FROM sync_log WHERE project_id = ? ORDER BY logical_clock DESC"
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var reversed []synclog.Entry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e synclog.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		reversed = append(reversed, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]synclog.Entry, len(reversed))
	for i, e := range reversed {
		out[len(reversed)-1-i] = e
	}
	return out, nil
}

var _ synclog.Store = (*SyncLogStore)(nil)
