// Package intervention provides the domain model for operator-originated
// commands applied either immediately by the coordinator (§4.4 heartbeat
// delivery) or cooperatively by the agent on its next heartbeat.
package intervention

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested intervention does not exist.
var ErrNotFound = errors.New("intervention not found")

// Type names the intervention kind, and indexes the Params tagged union.
type Type string

const (
	TypePause       Type = "PAUSE"
	TypeAbort       Type = "ABORT"
	TypeReleaseLock Type = "RELEASE_LOCK"
	TypeForceStatus Type = "FORCE_STATUS"
	TypeRetry       Type = "RETRY"
)

// Status tracks whether the coordinator has applied the intervention.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
)

// Params is the tagged union of per-type parameters. Only the fields
// relevant to Type are populated; handlers dispatch on Type alone.
type Params struct {
	// FORCE_STATUS
	ForceStatus string `json:"forceStatus,omitempty"`

	// RETRY
	ResetIteration bool `json:"resetIteration,omitempty"`
}

// Intervention is an operator-originated command against a task.
type Intervention struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	Type        Type      `json:"type"`
	RequestedBy string    `json:"requestedBy"`
	Reason      string    `json:"reason"`
	Params      Params    `json:"params,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	AppliedAt   time.Time `json:"appliedAt,omitempty"`
}

// Store persists interventions and supports the atomic
// mark-pending-as-applied operation the heartbeat handler needs (§4.4).
type Store interface {
	Create(ctx context.Context, iv *Intervention) error
	Get(ctx context.Context, id string) (*Intervention, error)
	// DrainPending atomically marks every pending intervention for
	// taskID as applied and returns the drained batch, in the order
	// they were created.
	DrainPending(ctx context.Context, taskID string, now time.Time) ([]*Intervention, error)
	ListByTask(ctx context.Context, taskID string) ([]*Intervention, error)
}
