package statemachine

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/relaysync/conductor/domain/task"
)

// TransitionPayload carries the target status and the operator- or
// agent-supplied reason with a transition event.
type TransitionPayload struct {
	ToStatus task.Status
	Reason   string
}

// Interpreter wraps the statekit interpreter with task-specific
// convenience methods, mirroring the teacher's agent interpreter.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates an interpreter bound to a task's machine context.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{interp: interp, ctx: ctx}
}

// Start enters the initial state and syncs it onto the task.
func (i *Interpreter) Start() {
	i.interp.Start()
	i.ctx.Task.Status = task.Status(i.interp.State().Value)
}

// Stop halts the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// Status returns the task's current machine-tracked status.
func (i *Interpreter) Status() task.Status {
	return task.Status(i.interp.State().Value)
}

// Transition attempts a transition to the target status, recording
// reason on success.
func (i *Interpreter) Transition(to task.Status, reason string) error {
	if !i.CanTransition(to) {
		return fmt.Errorf("transition from %s to %s not allowed", i.ctx.Task.Status, to)
	}

	i.interp.Send(statekit.Event{
		Type:    EventForTransition(to),
		Payload: TransitionPayload{ToStatus: to, Reason: reason},
	})

	i.ctx.Task.Status = task.Status(i.interp.State().Value)
	return nil
}

// CanTransition reports whether a transition to the target status is
// currently permitted.
func (i *Interpreter) CanTransition(to task.Status) bool {
	return i.ctx.Transitions.CanTransition(i.ctx.Task.Status, to)
}

// IsTerminal reports whether the machine has reached a final state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Context returns the bound machine context.
func (i *Interpreter) Context() *Context {
	return i.ctx
}

// Matches reports whether the current state matches the given status.
func (i *Interpreter) Matches(status task.Status) bool {
	return i.interp.Matches(statekit.StateID(status))
}

// Restore resumes the interpreter at a specific status, used when the
// coordinator restarts with a task already mid-flight.
func (i *Interpreter) Restore(status task.Status) error {
	snapshot := statekit.Snapshot[*Context]{
		MachineID:    "task",
		CurrentState: statekit.StateID(status),
		Context:      i.ctx,
		CreatedAt:    time.Now(),
	}
	if err := i.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("restore task machine: %w", err)
	}
	i.ctx.Task.Status = status
	return nil
}
