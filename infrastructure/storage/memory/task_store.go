package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/relaysync/conductor/domain/task"
)

// TaskStore is an in-memory implementation of task.Store.
type TaskStore struct {
	tasks map[string]*task.Task
	mu    sync.RWMutex
}

// NewTaskStore creates a new in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*task.Task)}
}

// Create inserts a new task at version 0.
func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		return task.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return task.ErrAlreadyExists
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get retrieves a task by id.
func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	return t.Clone(), nil
}

// CompareAndSwap mutates the stored task if expectedVersion matches its
// current SyncVersion, bumping the version on success.
func (s *TaskStore) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate func(*task.Task) error) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	if t.SyncVersion != expectedVersion {
		return nil, task.ErrVersionConflict
	}

	working := t.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.SyncVersion = expectedVersion + 1

	s.tasks[id] = working
	return working.Clone(), nil
}

// Delete removes a task.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return task.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// List returns tasks matching filter.
func (s *TaskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*task.Task
	for _, t := range s.tasks {
		if matchesFilter(t, filter) {
			result = append(result, t.Clone())
		}
	}

	sortTasks(result, filter.OrderBy, filter.Descending)

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*task.Task{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the number of tasks matching filter.
func (s *TaskStore) Count(ctx context.Context, filter task.ListFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, t := range s.tasks {
		if matchesFilter(t, filter) {
			count++
		}
	}
	return count, nil
}

// Summary returns aggregate statistics across a project's tasks.
func (s *TaskStore) Summary(ctx context.Context, projectID string) (task.Summary, error) {
	if err := ctx.Err(); err != nil {
		return task.Summary{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum task.Summary
	for _, t := range s.tasks {
		if t.ProjectID != projectID {
			continue
		}
		sum.TotalTasks++
		switch t.Status {
		case task.StatusPending:
			sum.PendingTasks++
		case task.StatusQueued:
			sum.QueuedTasks++
		case task.StatusRunning:
			sum.RunningTasks++
		case task.StatusCompleted:
			sum.CompletedTasks++
		case task.StatusFailed:
			sum.FailedTasks++
		case task.StatusStuck:
			sum.StuckTasks++
		}
	}
	return sum, nil
}

func matchesFilter(t *task.Task, filter task.ListFilter) bool {
	if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
		return false
	}
	if len(filter.Status) > 0 {
		found := false
		for _, st := range filter.Status {
			if t.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.LockedBy != "" && t.LockedBy != filter.LockedBy {
		return false
	}
	if filter.NamePattern != "" && !strings.Contains(t.Name, filter.NamePattern) {
		return false
	}
	return true
}

func sortTasks(tasks []*task.Task, orderBy task.OrderBy, descending bool) {
	sort.Slice(tasks, func(i, j int) bool {
		var less bool
		switch orderBy {
		case task.OrderByCreatedAt:
			less = tasks[i].StartedAt.Before(tasks[j].StartedAt)
		case task.OrderByID:
			less = tasks[i].ID < tasks[j].ID
		case task.OrderByStatus:
			less = string(tasks[i].Status) < string(tasks[j].Status)
		default:
			less = tasks[i].Priority < tasks[j].Priority
		}
		if descending {
			return !less
		}
		return less
	})
}

// Clear removes all tasks from the store, for test setup.
func (s *TaskStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]*task.Task)
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

var (
	_ task.Store           = (*TaskStore)(nil)
	_ task.SummaryProvider = (*TaskStore)(nil)
)
