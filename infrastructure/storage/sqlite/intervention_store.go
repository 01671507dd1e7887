package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/relaysync/conductor/domain/intervention"
)

// InterventionStore is a SQLite-backed implementation of intervention.Store.
type InterventionStore struct {
	db *sql.DB
}

// NewInterventionStore creates a new SQLite intervention store.
func NewInterventionStore(cfg Config, opts ...Option) (*InterventionStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &InterventionStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *InterventionStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS interventions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_interventions_task ON interventions(task_id, created_at);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Create persists a new intervention.
func (s *InterventionStore) Create(ctx context.Context, iv *intervention.Intervention) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(iv)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO interventions (id, task_id, status, created_at, data) VALUES (?, ?, ?, ?, ?)",
		iv.ID, iv.TaskID, string(iv.Status), iv.CreatedAt.Unix(), data,
	)
	return err
}

// Get retrieves an intervention by id.
func (s *InterventionStore) Get(ctx context.Context, id string) (*intervention.Intervention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM interventions WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intervention.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var iv intervention.Intervention
	if err := json.Unmarshal(data, &iv); err != nil {
		return nil, err
	}
	return &iv, nil
}

// DrainPending atomically marks every pending intervention for taskID
// as applied, under a transaction, and returns the drained batch.
func (s *InterventionStore) DrainPending(ctx context.Context, taskID string, now time.Time) ([]*intervention.Intervention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, data FROM interventions WHERE task_id = ? AND status = ? ORDER BY created_at ASC",
		taskID, string(intervention.StatusPending))
	if err != nil {
		return nil, err
	}

	type pending struct {
		id  string
		iv  intervention.Intervention
	}
	var batch []pending
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			_ = rows.Close()
			return nil, err
		}
		var iv intervention.Intervention
		if err := json.Unmarshal(data, &iv); err != nil {
			continue
		}
		batch = append(batch, pending{id: id, iv: iv})
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	drained := make([]*intervention.Intervention, 0, len(batch))
	for _, p := range batch {
		p.iv.Status = intervention.StatusApplied
		p.iv.AppliedAt = now
		data, err := json.Marshal(p.iv)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE interventions SET status = ?, data = ? WHERE id = ?",
			string(intervention.StatusApplied), data, p.id,
		); err != nil {
			return nil, err
		}
		iv := p.iv
		drained = append(drained, &iv)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return drained, nil
}

// ListByTask returns every intervention created for taskID, in creation order.
func (s *InterventionStore) ListByTask(ctx context.Context, taskID string) ([]*intervention.Intervention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM interventions WHERE task_id = ? ORDER BY created_at ASC", taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*intervention.Intervention
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var iv intervention.Intervention
		if err := json.Unmarshal(data, &iv); err != nil {
			continue
		}
		out = append(out, &iv)
	}
	return out, rows.Err()
}

var _ intervention.Store = (*InterventionStore)(nil)
