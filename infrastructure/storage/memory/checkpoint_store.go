package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/relaysync/conductor/domain/checkpoint"
)

// CheckpointStore is an in-memory implementation of checkpoint.Store.
type CheckpointStore struct {
	byTask map[string][]checkpoint.Checkpoint
	mu     sync.RWMutex
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{byTask: make(map[string][]checkpoint.Checkpoint)}
}

// Save appends a checkpoint for its task.
func (s *CheckpointStore) Save(ctx context.Context, c checkpoint.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTask[c.TaskID] = append(s.byTask[c.TaskID], c)
	return nil
}

// Latest returns the highest-iteration checkpoint for taskID.
func (s *CheckpointStore) Latest(ctx context.Context, taskID string) (checkpoint.Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Checkpoint{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byTask[taskID]
	if len(list) == 0 {
		return checkpoint.Checkpoint{}, false, nil
	}
	latest := list[0]
	for _, c := range list[1:] {
		if c.Iteration > latest.Iteration {
			latest = c
		}
	}
	return latest, true, nil
}

// List returns every checkpoint for taskID, oldest iteration first.
func (s *CheckpointStore) List(ctx context.Context, taskID string) ([]checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]checkpoint.Checkpoint, len(s.byTask[taskID]))
	copy(out, s.byTask[taskID])
	sort.Slice(out, func(i, j int) bool { return out[i].Iteration < out[j].Iteration })
	return out, nil
}

// Prune keeps only the keep most recent checkpoints (by iteration),
// discarding the rest, per §4.9.
func (s *CheckpointStore) Prune(ctx context.Context, taskID string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byTask[taskID]
	if keep <= 0 || len(list) <= keep {
		return nil
	}
	sorted := make([]checkpoint.Checkpoint, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Iteration < sorted[j].Iteration })
	s.byTask[taskID] = sorted[len(sorted)-keep:]
	return nil
}

var _ checkpoint.Store = (*CheckpointStore)(nil)
