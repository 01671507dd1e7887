// Package task provides the domain model for the central coordination entity.
package task

import (
	"time"

	"github.com/relaysync/conductor/domain/criteria"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusBlocked   Status = "blocked"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
	StatusStuck     Status = "stuck"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether status admits no further transitions outside
// of an explicit RETRY intervention.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted, StatusSkipped:
		return true
	default:
		return false
	}
}

// StuckStrategy names a recovery strategy selected per task for §4.8.
type StuckStrategy string

const (
	StrategyRetryVariation StuckStrategy = "retry-variation"
	StrategySimplify       StuckStrategy = "simplify"
	StrategyRollback       StuckStrategy = "rollback"
	StrategyAbort          StuckStrategy = "abort"
)

// Config is the embedded per-task configuration: criteria, iteration
// bounds, dependency graph membership, checkpoint cadence and the
// chosen stuck-recovery strategy.
type Config struct {
	Criteria           []criteria.Criterion `json:"criteria" yaml:"criteria"`
	Mode               criteria.Mode        `json:"mode" yaml:"mode"`
	RequiredScore      float64              `json:"requiredScore,omitempty" yaml:"requiredScore,omitempty"`
	MaxIterations      int                  `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
	DependsOn          []string             `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	CheckpointInterval int                  `json:"checkpointInterval,omitempty" yaml:"checkpointInterval,omitempty"`
	CheckpointKeep     int                  `json:"checkpointKeep,omitempty" yaml:"checkpointKeep,omitempty"`
	StuckStrategy      StuckStrategy        `json:"stuckStrategy,omitempty" yaml:"stuckStrategy,omitempty"`
	MaxDuration        time.Duration        `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
	MaxTokens          int                  `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}

// Result is populated only after a terminal transition.
type Result struct {
	Success bool            `json:"success"`
	Summary string          `json:"summary,omitempty"`
	Data    map[string]any  `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Task is the central entity held by the Coordinator.
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Priority  int    `json:"priority"`

	Status      Status `json:"status"`
	SyncVersion int64  `json:"syncVersion"`

	LockedBy      string    `json:"lockedBy,omitempty"`
	LockedAt      time.Time `json:"lockedAt,omitempty"`
	LockExpiresAt time.Time `json:"lockExpiresAt,omitempty"`

	Iteration   int        `json:"iteration"`
	StartedAt   time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Config Config  `json:"config"`
	Result *Result `json:"result,omitempty"`
}

// Locked reports whether the task currently has an active, unexpired lock.
func (t *Task) Locked(now time.Time) bool {
	return t.LockedBy != "" && t.LockExpiresAt.After(now)
}

// ClearLock resets the lock-related fields.
func (t *Task) ClearLock() {
	t.LockedBy = ""
	t.LockedAt = time.Time{}
	t.LockExpiresAt = time.Time{}
}

// ResetForRetry returns the task to a fresh, queued state as required by
// the RETRY intervention (§4.11, invariant 3): iteration and result are
// cleared, version is left for the caller to bump.
func (t *Task) ResetForRetry() {
	t.Status = StatusQueued
	t.Iteration = 0
	t.Result = nil
	t.CompletedAt = nil
	t.ClearLock()
}

// Clone returns a deep-enough copy for safe concurrent reads: store
// implementations hand out clones rather than internal pointers.
func (t *Task) Clone() *Task {
	c := *t
	c.Config.Criteria = append([]criteria.Criterion(nil), t.Config.Criteria...)
	c.Config.DependsOn = append([]string(nil), t.Config.DependsOn...)
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}
