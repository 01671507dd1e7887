// Package statemachine provides the statekit integration that drives
// task.Status transitions (§4.3), generalized from the teacher's agent
// runtime statechart.
package statemachine

import (
	"sync"

	"github.com/felixgeelhaar/statekit"

	"github.com/relaysync/conductor/domain/task"
)

// Context carries task state through the machine. Ledger is the
// synclog append hook wired in by the coordinator; it is an interface
// here so the state machine package does not import infrastructure/storage.
type Context struct {
	Task        *task.Task
	Transitions *task.Transitions
	Ledger      TransitionRecorder
}

// TransitionRecorder records an applied transition. Implemented by the
// coordinator's synclog writer.
type TransitionRecorder interface {
	RecordTransition(taskID string, from, to task.Status, reason string)
}

// NewContext creates a new machine context for t.
func NewContext(t *task.Task, ledger TransitionRecorder) *Context {
	return &Context{
		Task:        t,
		Transitions: task.DefaultTransitions(),
		Ledger:      ledger,
	}
}

// State IDs as StateID type for statekit.
const (
	statePending   statekit.StateID = statekit.StateID(task.StatusPending)
	stateQueued    statekit.StateID = statekit.StateID(task.StatusQueued)
	stateBlocked   statekit.StateID = statekit.StateID(task.StatusBlocked)
	stateRunning   statekit.StateID = statekit.StateID(task.StatusRunning)
	statePaused    statekit.StateID = statekit.StateID(task.StatusPaused)
	stateCompleted statekit.StateID = statekit.StateID(task.StatusCompleted)
	stateFailed    statekit.StateID = statekit.StateID(task.StatusFailed)
	stateAborted   statekit.StateID = statekit.StateID(task.StatusAborted)
	stateStuck     statekit.StateID = statekit.StateID(task.StatusStuck)
	stateSkipped   statekit.StateID = statekit.StateID(task.StatusSkipped)
)

// NewTaskMachine builds the canonical task statechart from §4.3's
// transition table. Unlike the teacher's fixed agent statechart, the
// wiring below is generated from task.DefaultTransitions() so the two
// never drift apart.
func NewTaskMachine() (*statekit.MachineConfig[*Context], error) {
	b := statekit.NewMachine[*Context]("task").
		WithInitial(statePending).
		WithContext(&Context{}).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition)

	table := task.DefaultTransitions()
	for _, from := range []task.Status{
		task.StatusPending, task.StatusBlocked, task.StatusQueued,
		task.StatusRunning, task.StatusPaused, task.StatusStuck,
	} {
		sb := b.State(statekit.StateID(from))
		for _, to := range table.TargetsFrom(from) {
			sb = sb.On(EventForTransition(to)).
				Target(statekit.StateID(to)).
				Guard("canTransition").
				Do("recordTransition")
		}
		b = sb.Done()
	}

	return b.
		State(stateCompleted).Final().Done().
		State(stateFailed).Final().Done().
		State(stateAborted).Final().Done().
		State(stateSkipped).Final().Done().
		Build()
}

// EventForTransition returns the statekit event type for a transition
// into the given status.
func EventForTransition(to task.Status) statekit.EventType {
	return statekit.EventType(to)
}

// StatusFromMachine converts a statekit state ID back to task.Status.
func StatusFromMachine(stateID statekit.StateID) task.Status {
	return task.Status(stateID)
}

var (
	defaultMachineOnce sync.Once
	defaultMachine     *statekit.MachineConfig[*Context]
	defaultMachineErr  error
)

// DefaultMachine returns the process-wide task machine, building it
// once. Coordinator handlers bind a fresh Context per request rather
// than rebuilding the statechart on every push or claim.
func DefaultMachine() (*statekit.MachineConfig[*Context], error) {
	defaultMachineOnce.Do(func() {
		defaultMachine, defaultMachineErr = NewTaskMachine()
	})
	return defaultMachine, defaultMachineErr
}
