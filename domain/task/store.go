package task

import (
	"context"
	"time"
)

// Store is the durable persistence interface for tasks (C11), modeled on
// the teacher's run.Store: implementations may be in-memory, sqlite, or
// any other backend, and the application layer depends only on this
// interface.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)

	// CompareAndSwap persists mutate's result iff the stored task's
	// SyncVersion still equals expectedVersion when the write happens,
	// giving callers an atomic conditional update (§4.1 push, §4.4
	// claim/heartbeat/release). mutate receives a clone of the current
	// row and must return the desired next state; Store increments
	// SyncVersion itself after a successful mutate.
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate func(*Task) error) (*Task, error)

	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*Task, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

// ListFilter specifies criteria for listing tasks.
type ListFilter struct {
	ProjectID   string
	Status      []Status
	LockedBy    string
	NamePattern string
	Limit       int
	Offset      int
	OrderBy     OrderBy
	Descending  bool
}

// OrderBy specifies how to sort task results.
type OrderBy string

const (
	OrderByPriority  OrderBy = "priority"
	OrderByCreatedAt OrderBy = "created_at"
	OrderByID        OrderBy = "id"
	OrderByStatus    OrderBy = "status"
)

// Summary provides the aggregate health view backing GET /status/:projectId.
type Summary struct {
	TotalTasks      int64
	PendingTasks    int64
	QueuedTasks     int64
	RunningTasks    int64
	CompletedTasks  int64
	FailedTasks     int64
	StuckTasks      int64
	AverageDuration time.Duration
}

// SummaryProvider is an optional interface for stores that support
// aggregate summaries without the caller re-deriving them from List.
type SummaryProvider interface {
	Summary(ctx context.Context, projectID string) (Summary, error)
}
