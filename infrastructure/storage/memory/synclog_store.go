package memory

import (
	"context"
	"sync"

	"github.com/relaysync/conductor/domain/synclog"
)

// SyncLogStore is an in-process implementation of synclog.Store: an
// append-only slice per project, guarded by a mutex.
type SyncLogStore struct {
	byProject map[string][]synclog.Entry
	mu        sync.RWMutex
}

// NewSyncLogStore creates a new in-memory sync log store.
func NewSyncLogStore() *SyncLogStore {
	return &SyncLogStore{byProject: make(map[string][]synclog.Entry)}
}

// Append adds e to its project's log.
func (s *SyncLogStore) Append(ctx context.Context, e synclog.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProject[e.ProjectID] = append(s.byProject[e.ProjectID], e)
	return nil
}

// Tail returns the most recent limit entries for projectID, oldest
// first within that window.
func (s *SyncLogStore) Tail(ctx context.Context, projectID string, limit int) ([]synclog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.byProject[projectID]
	if limit <= 0 || limit >= len(log) {
		out := make([]synclog.Entry, len(log))
		copy(out, log)
		return out, nil
	}
	out := make([]synclog.Entry, limit)
	copy(out, log[len(log)-limit:])
	return out, nil
}

var _ synclog.Store = (*SyncLogStore)(nil)
