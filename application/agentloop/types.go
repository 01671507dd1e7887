package agentloop

import (
	"context"
	"time"

	"github.com/relaysync/conductor/domain/iteration"
	"github.com/relaysync/conductor/domain/task"
)

// CommandType names an external command dropped into the agent's local
// inbox file (§9 "command inbox"), distinct from the operator
// interventions the coordinator drains at heartbeat time.
type CommandType string

const (
	CommandComplete CommandType = "complete"
	CommandPause    CommandType = "pause"
	CommandAbort    CommandType = "abort"
)

// Command is one pending entry from the inbox.
type Command struct {
	Type   CommandType
	Reason string
}

// CommandInbox reads and consumes (deletes) one pending external
// command, if any, matching `.forge/command.json`'s lifecycle.
type CommandInbox interface {
	Next(ctx context.Context) (*Command, error)
}

// TranscriptSource supplies the parent runtime's latest turn output.
type TranscriptSource interface {
	Read(ctx context.Context) (string, error)
}

// WorkspaceDiff reports files touched since the last call, names only,
// deduplicated (§4.6 step 5).
type WorkspaceDiff interface {
	Changed(ctx context.Context) ([]string, error)
}

// StatePersister durably saves the driver's local state, mirroring
// `.forge/state.json`.
type StatePersister interface {
	Save(ctx context.Context, s State) error
}

// QualityGate is a periodic external check with an optional auto-fix
// command (§4.6 step 11). A gate failing never fails the iteration by
// itself.
type QualityGate struct {
	Name           string
	Command        string
	Args           []string
	Interval       int
	AutoFixCommand string
	AutoFixArgs    []string
}

// SignalType classifies what the driver asks the parent runtime to do
// on its next turn.
type SignalType string

const (
	// SignalApprove means there is no active task; the runtime may
	// proceed with whatever it would otherwise do.
	SignalApprove SignalType = "approve"
	// SignalContinue carries a prompt (plus any recovery suffix) the
	// runtime should block on and feed back in as the next turn.
	SignalContinue SignalType = "continue"
	// SignalExit means the workspace's active task was paused, or reached
	// a terminal state and no follow-up task was claimed.
	SignalExit SignalType = "exit"
)

// Signal is the driver's instruction to the parent runtime for the next
// turn.
type Signal struct {
	Type   SignalType
	Prompt string
	Reason string
}

// State is the driver's local view of the active task, persisted
// between ticks to `.forge/state.json`.
type State struct {
	TaskID      string
	ProjectID   string
	NodeID      string
	Prompt      string
	Name        string
	Status      task.Status
	SyncVersion int64

	Iteration        int
	StartedAt        time.Time
	CurrentStartedAt time.Time

	Metrics iteration.Metrics
	History []iteration.Record

	Config task.Config

	// LastCheckpointIteration is the iteration number as of the last
	// checkpoint, so step 10 can tell when the interval next hits.
	LastCheckpointIteration int
}

// reset reinitializes s for a freshly claimed task, per §4.6.1.
func (s *State) reset(projectID, nodeID, taskID, name, prompt string, cfg task.Config, version int64, now time.Time) {
	*s = State{
		TaskID:           taskID,
		ProjectID:        projectID,
		NodeID:           nodeID,
		Prompt:           prompt,
		Name:             name,
		Status:           task.StatusRunning,
		SyncVersion:      version,
		Iteration:        1,
		StartedAt:        now,
		CurrentStartedAt: now,
		Config:           cfg,
	}
}
