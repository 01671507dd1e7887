package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/relaysync/conductor/domain/task"
)

// recordTransition applies the transition to the task and records it on
// the ledger. Actions receive a pointer to the context; since our
// context is *Context, actions receive **Context.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Task == nil {
		return
	}

	c := *ctx
	from := c.Task.Status

	var to task.Status
	var reason string
	if payload, ok := event.Payload.(TransitionPayload); ok {
		to = payload.ToStatus
		reason = payload.Reason
	} else {
		to = task.Status(event.Type)
	}

	c.Task.Status = to

	if c.Ledger != nil {
		c.Ledger.RecordTransition(c.Task.ID, from, to, reason)
	}
}
