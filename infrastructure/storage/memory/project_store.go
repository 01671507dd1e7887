package memory

import (
	"context"
	"sync"

	"github.com/relaysync/conductor/domain/project"
)

// ProjectStore is an in-memory implementation of project.Store.
type ProjectStore struct {
	projects map[string]*project.Project
	mu       sync.RWMutex
}

// NewProjectStore creates a new in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[string]*project.Project)}
}

// Upsert creates or replaces a project.
func (s *ProjectStore) Upsert(ctx context.Context, p *project.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

// Get retrieves a project by id.
func (s *ProjectStore) Get(ctx context.Context, id string) (*project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, project.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns every registered project.
func (s *ProjectStore) List(ctx context.Context) ([]*project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*project.Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

var _ project.Store = (*ProjectStore)(nil)
