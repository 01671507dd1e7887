// Package coordinator implements the sync-protocol handler (C1), wiring
// together the conflict resolver (C2), state machine (C3), lock and
// lease manager (C4) and broadcast bus (C5) behind the operations the
// HTTP surface exposes, generalized from the teacher's application.Engine
// orchestration pattern.
package coordinator

import (
	"time"

	"github.com/relaysync/conductor/domain/intervention"
	"github.com/relaysync/conductor/domain/task"
)

// SyncBucket classifies one task during a handshake.
type SyncBucket string

const (
	BucketInSync    SyncBucket = "in-sync"
	BucketNeedsPull SyncBucket = "needs-pull"
	BucketNeedsPush SyncBucket = "needs-push"
	BucketConflict  SyncBucket = "conflict"
)

// HandshakeRequest carries the agent's logical clock and its
// locally-believed task versions.
type HandshakeRequest struct {
	NodeID       string           `json:"nodeId"`
	LocalClock   int64            `json:"localClock"`
	TaskVersions map[string]int64 `json:"taskVersions"`
}

// HandshakeResponse buckets every task known to the project.
type HandshakeResponse struct {
	ServerClock int64               `json:"serverClock"`
	Buckets     map[string][]string `json:"buckets"`
}

// PushTaskUpdate is one task's proposed mutation.
type PushTaskUpdate struct {
	ID              string         `json:"id"`
	ExpectedVersion int64          `json:"expectedVersion"`
	Status          string         `json:"status"`
	Result          map[string]any `json:"result,omitempty"`
	Iteration       int            `json:"iteration,omitempty"`
}

// PushRequest is a batch of task updates from one node.
type PushRequest struct {
	NodeID string           `json:"nodeId"`
	Tasks  []PushTaskUpdate `json:"tasks"`
}

// PushResult reports the outcome of one task's push.
type PushResult struct {
	ID      string `json:"id"`
	Applied bool   `json:"applied"`
	Version int64  `json:"version,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PushResponse is the batch result plus the coordinator's clock.
type PushResponse struct {
	ServerClock int64        `json:"serverClock"`
	Results     []PushResult `json:"results"`
}

// PullRequest asks for the current state of a specific task set.
type PullRequest struct {
	TaskIDs []string `json:"taskIds"`
}

// PullTaskState is the minimal wire projection of a task row.
type PullTaskState struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Version   int64          `json:"version"`
	Result    map[string]any `json:"result,omitempty"`
	Iteration int            `json:"iteration,omitempty"`
	LockedBy  string         `json:"lockedBy,omitempty"`
}

// PullResponse carries the requested task states; unknown ids are
// simply omitted.
type PullResponse struct {
	ServerClock int64           `json:"serverClock"`
	Tasks       []PullTaskState `json:"tasks"`
}

// ClaimRequest asks to take ownership of a queued task.
type ClaimRequest struct {
	NodeID       string        `json:"nodeId"`
	LockDuration time.Duration `json:"lockDuration,omitempty"`
}

// ClaimResponse echoes the claimed task's new lease.
type ClaimResponse struct {
	ServerClock   int64     `json:"serverClock"`
	TaskID        string    `json:"taskId"`
	Version       int64     `json:"version"`
	LockExpiresAt time.Time `json:"lockExpiresAt"`
}

// ClaimNextResponse is ClaimResponse plus the fields the agent driver
// needs to start running a newly-claimed task (§4.6.1 auto-advance).
type ClaimNextResponse struct {
	ClaimResponse
	Name   string      `json:"name"`
	Prompt string      `json:"prompt"`
	Config task.Config `json:"config"`
}

// HeartbeatRequest extends a held lease and reports progress.
type HeartbeatRequest struct {
	NodeID         string `json:"nodeId"`
	Iteration      int    `json:"iteration,omitempty"`
	Progress       string `json:"progress,omitempty"`
	ExecutionState string `json:"executionState,omitempty"`
}

// Command is one intervention echoed back to the heartbeating agent.
type Command struct {
	Type   intervention.Type   `json:"type"`
	Reason string              `json:"reason,omitempty"`
	Params intervention.Params `json:"params,omitempty"`
}

// HeartbeatResponse extends the lease and delivers pending commands.
type HeartbeatResponse struct {
	ServerClock   int64     `json:"serverClock"`
	LockExpiresAt time.Time `json:"lockExpiresAt"`
	Commands      []Command `json:"commands"`
}

// ReleaseRequest voluntarily gives up a held lease.
type ReleaseRequest struct {
	NodeID string `json:"nodeId"`
}

// IntervenRequest queues or immediately applies an operator command.
type IntervenRequest struct {
	Type        intervention.Type   `json:"type"`
	TaskID      string              `json:"taskId"`
	RequestedBy string              `json:"requestedBy"`
	Reason      string              `json:"reason"`
	Params      intervention.Params `json:"params,omitempty"`
}

// SweepResult reports how many running tasks the sweeper demoted.
type SweepResult struct {
	ServerClock int64    `json:"serverClock"`
	Stuck       []string `json:"stuck"`
}
