package conflict

import (
	"testing"

	"github.com/relaysync/conductor/domain/task"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	trans := task.DefaultTransitions()

	tests := []struct {
		name string
		ctx  Context
		want Verdict
	}{
		{
			name: "terminal server state always rejects",
			ctx: Context{
				ServerStatus: task.StatusCompleted,
				PluginStatus: task.StatusRunning,
			},
			want: Reject,
		},
		{
			name: "active runner with valid transition wins",
			ctx: Context{
				PluginIsActiveRunner: true,
				ServerStatus:         task.StatusRunning,
				PluginStatus:         task.StatusCompleted,
				Transitions:          trans,
			},
			want: PluginWins,
		},
		{
			name: "active runner with invalid transition falls through to reject",
			ctx: Context{
				PluginIsActiveRunner: true,
				ServerStatus:         task.StatusRunning,
				PluginStatus:         task.StatusPending,
				Transitions:          trans,
			},
			want: Reject,
		},
		{
			name: "running locked by another agent rejects",
			ctx: Context{
				PluginIsActiveRunner: false,
				ServerStatus:         task.StatusRunning,
				PluginStatus:         task.StatusCompleted,
				Transitions:          trans,
			},
			want: Reject,
		},
		{
			name: "idempotent retry wins as no-op",
			ctx: Context{
				PluginIsActiveRunner: false,
				ServerStatus:         task.StatusQueued,
				PluginStatus:         task.StatusQueued,
				Transitions:          trans,
			},
			want: PluginWins,
		},
		{
			name: "otherwise server wins",
			ctx: Context{
				PluginIsActiveRunner: false,
				ServerStatus:         task.StatusQueued,
				PluginStatus:         task.StatusBlocked,
				Transitions:          trans,
			},
			want: ServerWins,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Resolve(tt.ctx); got != tt.want {
				t.Errorf("Resolve() = %s, want %s", got, tt.want)
			}
		})
	}
}
