package logging

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/relaysync/conductor/domain/task"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for coordinator and agent-loop logging.

// TaskID adds a task ID field.
func TaskID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("task_id", id)
	}
}

// ProjectID adds a project ID field.
func ProjectID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("project_id", id)
	}
}

// NodeID adds a node ID field.
func NodeID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("node_id", id)
	}
}

// Status adds a task status field.
func Status(s task.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", string(s))
	}
}

// FromStatus adds a from_status field for transitions.
func FromStatus(s task.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_status", string(s))
	}
}

// ToStatus adds a to_status field for transitions.
func ToStatus(s task.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_status", string(s))
	}
}

// Iteration adds an iteration number field.
func Iteration(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("iteration", n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// DurationNs adds a duration field in nanoseconds.
func DurationNs(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ns", d.Nanoseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Attempt adds a retry/attempt count field.
func Attempt(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempt", n)
	}
}

// Pattern adds a stuck-pattern name field.
func Pattern(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("pattern", name)
	}
}

// Strategy adds a stuck-recovery-strategy name field.
func Strategy(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("strategy", name)
	}
}

// CheckpointRef adds a checkpoint stash-ref field.
func CheckpointRef(ref string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("checkpoint_ref", ref)
	}
}

// Score adds a criteria-evaluation score field.
func Score(score float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("score", fmt.Sprintf("%.2f", score))
	}
}

// Goal adds a goal field.
func Goal(goal string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("goal", goal)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// LockKey adds a distributed lock key field.
func LockKey(key string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("lock_key", key)
	}
}

// Version adds an optimistic-concurrency version field.
func Version(v int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("version", v)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
