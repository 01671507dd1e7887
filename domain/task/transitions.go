package task

// Transitions is a declarative table of permitted status transitions,
// mirroring the teacher's policy.StateTransitions pattern: a table so
// tests can enumerate it exhaustively rather than branching on status
// pairs in code (§4.3).
type Transitions struct {
	allowed map[Status]map[Status]bool
}

// DefaultTransitions returns the table specified by §4.3.
func DefaultTransitions() *Transitions {
	t := &Transitions{allowed: make(map[Status]map[Status]bool)}
	t.add(StatusPending, StatusQueued, StatusBlocked, StatusSkipped)
	t.add(StatusBlocked, StatusQueued, StatusSkipped)
	t.add(StatusQueued, StatusRunning, StatusPaused, StatusAborted, StatusSkipped)
	t.add(StatusRunning, StatusPaused, StatusCompleted, StatusFailed, StatusStuck, StatusAborted)
	t.add(StatusPaused, StatusRunning, StatusAborted)
	t.add(StatusStuck, StatusRunning, StatusFailed, StatusAborted)
	return t
}

func (t *Transitions) add(from Status, to ...Status) {
	set := make(map[Status]bool, len(to))
	for _, s := range to {
		set[s] = true
	}
	t.allowed[from] = set
}

// CanTransition reports whether from -> to is in the table. A status
// transitioning to itself is never allowed: idempotent pushes are
// resolved by the conflict resolver (§4.2 rule 4), not the state
// machine.
func (t *Transitions) CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	set, ok := t.allowed[from]
	if !ok {
		return false
	}
	return set[to]
}

// Allow extends the table with an additional transition. Exposed for
// tests and for coordinators that need a non-default machine; production
// wiring always starts from DefaultTransitions.
func (t *Transitions) Allow(from, to Status) {
	if t.allowed[from] == nil {
		t.allowed[from] = make(map[Status]bool)
	}
	t.allowed[from][to] = true
}

// TargetsFrom returns the statuses reachable in one hop from from, for
// diagnostics and the state-machine's own table-driven tests.
func (t *Transitions) TargetsFrom(from Status) []Status {
	set := t.allowed[from]
	out := make([]Status, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}
