package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/relaysync/conductor/domain/task"
)

// guardCanTransition checks the event's target status against the
// transition table, by value since our context is *Context.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil || ctx.Task == nil || ctx.Transitions == nil {
		return false
	}

	from := ctx.Task.Status

	var to task.Status
	if payload, ok := event.Payload.(TransitionPayload); ok {
		to = payload.ToStatus
	} else {
		to = task.Status(event.Type)
	}

	return ctx.Transitions.CanTransition(from, to)
}
