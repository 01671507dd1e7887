package memory

import (
	"context"
	"sync"
	"time"

	"github.com/relaysync/conductor/domain/intervention"
)

// InterventionStore is an in-memory implementation of intervention.Store.
type InterventionStore struct {
	byID   map[string]*intervention.Intervention
	byTask map[string][]string
	mu     sync.RWMutex
}

// NewInterventionStore creates a new in-memory intervention store.
func NewInterventionStore() *InterventionStore {
	return &InterventionStore{
		byID:   make(map[string]*intervention.Intervention),
		byTask: make(map[string][]string),
	}
}

// Create persists a new intervention.
func (s *InterventionStore) Create(ctx context.Context, iv *intervention.Intervention) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *iv
	s.byID[iv.ID] = &cp
	s.byTask[iv.TaskID] = append(s.byTask[iv.TaskID], iv.ID)
	return nil
}

// Get retrieves an intervention by id.
func (s *InterventionStore) Get(ctx context.Context, id string) (*intervention.Intervention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.byID[id]
	if !ok {
		return nil, intervention.ErrNotFound
	}
	cp := *iv
	return &cp, nil
}

// DrainPending atomically marks every pending intervention for taskID
// as applied and returns the drained batch in creation order.
func (s *InterventionStore) DrainPending(ctx context.Context, taskID string, now time.Time) ([]*intervention.Intervention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var drained []*intervention.Intervention
	for _, id := range s.byTask[taskID] {
		iv := s.byID[id]
		if iv == nil || iv.Status != intervention.StatusPending {
			continue
		}
		iv.Status = intervention.StatusApplied
		iv.AppliedAt = now
		cp := *iv
		drained = append(drained, &cp)
	}
	return drained, nil
}

// ListByTask returns every intervention ever created for taskID, in
// creation order.
func (s *InterventionStore) ListByTask(ctx context.Context, taskID string) ([]*intervention.Intervention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*intervention.Intervention, 0, len(s.byTask[taskID]))
	for _, id := range s.byTask[taskID] {
		iv := s.byID[id]
		cp := *iv
		out = append(out, &cp)
	}
	return out, nil
}

var _ intervention.Store = (*InterventionStore)(nil)
