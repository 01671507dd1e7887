// Package conflict implements the push-time conflict resolver (§4.2): a
// pure function from context to verdict, touching no storage so it can
// be exhaustively table-tested.
package conflict

import "github.com/relaysync/conductor/domain/task"

// Verdict is the resolver's outcome for one conflicting push.
type Verdict string

const (
	ServerWins Verdict = "SERVER_WINS"
	PluginWins Verdict = "PLUGIN_WINS"
	Reject     Verdict = "REJECT"
)

// Context describes one push against a server row whose version has
// diverged from the pushing agent's expectedVersion.
type Context struct {
	// PluginIsActiveRunner reports whether the pushing node currently
	// holds the task's lock.
	PluginIsActiveRunner bool
	// ServerStatus is the task's status as currently stored.
	ServerStatus task.Status
	// PluginStatus is the status the pushing agent is proposing.
	PluginStatus task.Status
	// Transitions is the table used to validate the proposed move from
	// ServerStatus; nil is treated as "no transition is valid".
	Transitions *task.Transitions
}

// Resolve applies the five ordered rules from §4.2.
func Resolve(c Context) Verdict {
	if c.ServerStatus.Terminal() {
		return Reject
	}

	if c.PluginIsActiveRunner && c.Transitions != nil && c.Transitions.CanTransition(c.ServerStatus, c.PluginStatus) {
		return PluginWins
	}

	if c.ServerStatus == task.StatusRunning && !c.PluginIsActiveRunner {
		return Reject
	}

	if c.ServerStatus == c.PluginStatus {
		return PluginWins
	}

	return ServerWins
}
