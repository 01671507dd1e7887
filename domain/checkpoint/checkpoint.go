// Package checkpoint provides the domain model for working-tree snapshots
// the agent can roll back to (§4.9).
package checkpoint

import (
	"context"
	"time"
)

// Type distinguishes operator-triggered from interval-triggered checkpoints.
type Type string

const (
	TypeAuto   Type = "auto"
	TypeManual Type = "manual"
)

// Sentinel stash references used when the working tree needed no real
// snapshot, or when the underlying snapshot mechanism is unavailable.
const (
	StashRefClean = "clean"
	StashRefNone  = "none"
)

// MetricsSnapshot freezes the iteration metrics at checkpoint time so a
// rollback can restore them exactly.
type MetricsSnapshot struct {
	TotalTokens   int           `json:"totalTokens"`
	TotalDuration time.Duration `json:"totalDuration"`
}

// Checkpoint is a named, rollback-able snapshot of the working tree plus
// the task's metrics at a given iteration.
type Checkpoint struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"taskId"`
	Iteration int             `json:"iteration"`
	Type      Type            `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	StashRef  string          `json:"stashRef"`
	Metrics   MetricsSnapshot `json:"metrics"`
}

// Store persists checkpoints, keyed by task. Implementations are
// responsible for the keep-count pruning described in §4.9.
type Store interface {
	Save(ctx context.Context, c Checkpoint) error
	Latest(ctx context.Context, taskID string) (Checkpoint, bool, error)
	List(ctx context.Context, taskID string) ([]Checkpoint, error)
	Prune(ctx context.Context, taskID string, keep int) error
}
