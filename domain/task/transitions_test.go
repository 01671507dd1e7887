package task

import "testing"

func TestDefaultTransitions_Table(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusQueued, true},
		{StatusPending, StatusBlocked, true},
		{StatusPending, StatusSkipped, true},
		{StatusPending, StatusRunning, false},
		{StatusBlocked, StatusQueued, true},
		{StatusBlocked, StatusRunning, false},
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusPaused, true},
		{StatusQueued, StatusAborted, true},
		{StatusQueued, StatusSkipped, true},
		{StatusQueued, StatusCompleted, false},
		{StatusRunning, StatusPaused, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusStuck, true},
		{StatusRunning, StatusAborted, true},
		{StatusRunning, StatusQueued, false},
		{StatusPaused, StatusRunning, true},
		{StatusPaused, StatusAborted, true},
		{StatusPaused, StatusCompleted, false},
		{StatusStuck, StatusRunning, true},
		{StatusStuck, StatusFailed, true},
		{StatusStuck, StatusAborted, true},
		{StatusStuck, StatusQueued, false},
		{StatusCompleted, StatusQueued, false},
		{StatusFailed, StatusQueued, false},
		{StatusAborted, StatusQueued, false},
		{StatusSkipped, StatusQueued, false},
	}

	tr := DefaultTransitions()
	for _, c := range cases {
		t.Run(string(c.from)+"->"+string(c.to), func(t *testing.T) {
			if got := tr.CanTransition(c.from, c.to); got != c.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusAborted, StatusSkipped}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	nonTerminal := []Status{StatusPending, StatusQueued, StatusBlocked, StatusRunning, StatusPaused, StatusStuck}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestSelfTransitionNeverAllowed(t *testing.T) {
	tr := DefaultTransitions()
	all := []Status{StatusPending, StatusQueued, StatusBlocked, StatusRunning, StatusPaused, StatusStuck, StatusCompleted, StatusFailed, StatusAborted, StatusSkipped}
	for _, s := range all {
		if tr.CanTransition(s, s) {
			t.Errorf("self-transition %s->%s should not be allowed by the state machine", s, s)
		}
	}
}
