package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/relaysync/conductor/domain/project"
)

// ProjectStore is a SQLite-backed implementation of project.Store.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore creates a new SQLite project store.
func NewProjectStore(cfg Config, opts ...Option) (*ProjectStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &ProjectStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *ProjectStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_activity INTEGER NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Upsert creates or replaces a project.
func (s *ProjectStore) Upsert(ctx context.Context, p *project.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, path, created_at, last_activity) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, path=excluded.path, last_activity=excluded.last_activity`,
		p.ID, p.Name, p.Path, p.CreatedAt.Unix(), p.LastActivity.Unix(),
	)
	return err
}

// Get retrieves a project by id.
func (s *ProjectStore) Get(ctx context.Context, id string) (*project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p project.Project
	var createdAt, lastActivity int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, path, created_at, last_activity FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Path, &createdAt, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.LastActivity = time.Unix(lastActivity, 0).UTC()
	return &p, nil
}

// List returns every registered project.
func (s *ProjectStore) List(ctx context.Context) ([]*project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, path, created_at, last_activity FROM projects")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*project.Project
	for rows.Next() {
		var p project.Project
		var createdAt, lastActivity int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &createdAt, &lastActivity); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		p.LastActivity = time.Unix(lastActivity, 0).UTC()
		out = append(out, &p)
	}
	return out, rows.Err()
}

var _ project.Store = (*ProjectStore)(nil)
