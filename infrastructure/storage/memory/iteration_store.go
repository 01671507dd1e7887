package memory

import (
	"context"
	"sync"

	"github.com/relaysync/conductor/domain/iteration"
)

// IterationStore is an in-memory implementation of iteration.Store.
type IterationStore struct {
	byTask map[string][]iteration.Record
	mu     sync.RWMutex
}

// NewIterationStore creates a new in-memory iteration store.
func NewIterationStore() *IterationStore {
	return &IterationStore{byTask: make(map[string][]iteration.Record)}
}

// Append records one iteration for taskID.
func (s *IterationStore) Append(ctx context.Context, taskID string, r iteration.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTask[taskID] = append(s.byTask[taskID], r)
	return nil
}

// List returns every iteration recorded for taskID, in append order.
func (s *IterationStore) List(ctx context.Context, taskID string) ([]iteration.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]iteration.Record, len(s.byTask[taskID]))
	copy(out, s.byTask[taskID])
	return out, nil
}

var _ iteration.Store = (*IterationStore)(nil)
