package memory

import (
	"context"
	"sync"
	"time"

	"github.com/relaysync/conductor/domain/node"
)

// NodeStore is an in-memory implementation of node.Store.
type NodeStore struct {
	nodes map[string]*node.Node
	mu    sync.RWMutex
}

// NewNodeStore creates a new in-memory node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[string]*node.Node)}
}

// Upsert creates or replaces a node registration.
func (s *NodeStore) Upsert(ctx context.Context, n *node.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.nodes[n.ID] = &cp
	return nil
}

// Heartbeat bumps a node's LastSeen.
func (s *NodeStore) Heartbeat(ctx context.Context, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return node.ErrNotFound
	}
	n.LastSeen = now
	return nil
}

// Get retrieves a node by id.
func (s *NodeStore) Get(ctx context.Context, id string) (*node.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, node.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

// ListByProject returns every node registered under projectID.
func (s *NodeStore) ListByProject(ctx context.Context, projectID string) ([]*node.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*node.Node
	for _, n := range s.nodes {
		if n.ProjectID == projectID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ node.Store = (*NodeStore)(nil)
