package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/relaysync/conductor/domain/node"
)

// NodeStore is a SQLite-backed implementation of node.Store.
type NodeStore struct {
	db *sql.DB
}

// NewNodeStore creates a new SQLite node store.
func NewNodeStore(cfg Config, opts ...Option) (*NodeStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &NodeStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *NodeStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			node_type TEXT NOT NULL,
			display_name TEXT,
			capabilities TEXT,
			last_seen INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes(project_id);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Upsert creates or replaces a node registration.
func (s *NodeStore) Upsert(ctx context.Context, n *node.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	caps, err := json.Marshal(n.Capabilities)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO nodes (id, project_id, node_type, display_name, capabilities, last_seen) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET project_id=excluded.project_id, node_type=excluded.node_type,
			display_name=excluded.display_name, capabilities=excluded.capabilities, last_seen=excluded.last_seen`,
		n.ID, n.ProjectID, string(n.Type), n.DisplayName, string(caps), n.LastSeen.Unix(),
	)
	return err
}

// Heartbeat bumps a node's LastSeen.
func (s *NodeStore) Heartbeat(ctx context.Context, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE nodes SET last_seen = ? WHERE id = ?", now.Unix(), id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return node.ErrNotFound
	}
	return nil
}

// Get retrieves a node by id.
func (s *NodeStore) Get(ctx context.Context, id string) (*node.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := s.scanRow(s.db.QueryRowContext(ctx,
		"SELECT id, project_id, node_type, display_name, capabilities, last_seen FROM nodes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, node.ErrNotFound
	}
	return n, err
}

// ListByProject returns every node registered under projectID.
func (s *NodeStore) ListByProject(ctx context.Context, projectID string) ([]*node.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, project_id, node_type, display_name, capabilities, last_seen FROM nodes WHERE project_id = ?", projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*node.Node
	for rows.Next() {
		var id, pid, nodeType, displayName, caps string
		var lastSeen int64
		if err := rows.Scan(&id, &pid, &nodeType, &displayName, &caps, &lastSeen); err != nil {
			return nil, err
		}
		n := &node.Node{ID: id, ProjectID: pid, Type: node.Type(nodeType), DisplayName: displayName, LastSeen: time.Unix(lastSeen, 0).UTC()}
		if caps != "" {
			_ = json.Unmarshal([]byte(caps), &n.Capabilities)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NodeStore) scanRow(row *sql.Row) (*node.Node, error) {
	var id, pid, nodeType, displayName, caps string
	var lastSeen int64
	if err := row.Scan(&id, &pid, &nodeType, &displayName, &caps, &lastSeen); err != nil {
		return nil, err
	}
	n := &node.Node{ID: id, ProjectID: pid, Type: node.Type(nodeType), DisplayName: displayName, LastSeen: time.Unix(lastSeen, 0).UTC()}
	if strings.TrimSpace(caps) != "" {
		_ = json.Unmarshal([]byte(caps), &n.Capabilities)
	}
	return n, nil
}

var _ node.Store = (*NodeStore)(nil)
