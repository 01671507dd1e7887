package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaysync/conductor/application/coordinator"
	"github.com/relaysync/conductor/infrastructure/forgefs"
	"github.com/relaysync/conductor/interfaces/httpapi"
)

// newSyncCmd creates the `sync` command.
func (a *App) newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "sync [full|push|pull|pending]",
		Short:     "Reconcile local task state against the coordinator",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"full", "push", "pull", "pending"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sync(cmd, args[0])
		},
	}
	return cmd
}

func (a *App) sync(cmd *cobra.Command, mode string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	dir, err := forgefs.Open(wd)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	reg, err := dir.LoadRegistration()
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	client := httpapi.NewClient(reg.URL)
	ctx := cmd.Context()
	state := forgefs.NewStateFile(dir)

	switch mode {
	case "full":
		return a.syncFull(ctx, client, reg, state)
	case "push":
		return a.syncPush(ctx, client, reg, state)
	case "pull":
		return a.syncPull(ctx, client, reg, state)
	case "pending":
		return a.syncPending(ctx, client, reg)
	default:
		return fmt.Errorf("sync: unknown mode %q", mode)
	}
}

func (a *App) syncFull(ctx context.Context, client *httpapi.Client, reg *forgefs.RegistrationFile, state *forgefs.StateFile) error {
	s, err := state.Load()
	if err != nil {
		return fmt.Errorf("sync full: %w", err)
	}
	versions := map[string]int64{}
	if s.TaskID != "" {
		versions[s.TaskID] = s.SyncVersion
	}
	resp, err := client.Handshake(ctx, reg.ProjectID, coordinator.HandshakeRequest{
		NodeID:       reg.NodeID,
		TaskVersions: versions,
	})
	if err != nil {
		return fmt.Errorf("sync full: %w", err)
	}
	return a.printJSON(resp)
}

func (a *App) syncPush(ctx context.Context, client *httpapi.Client, reg *forgefs.RegistrationFile, state *forgefs.StateFile) error {
	s, err := state.Load()
	if err != nil {
		return fmt.Errorf("sync push: %w", err)
	}
	if s.TaskID == "" {
		fmt.Fprintln(a.stdout, "no active task to push")
		return nil
	}
	resp, err := client.Push(ctx, reg.ProjectID, coordinator.PushRequest{
		NodeID: reg.NodeID,
		Tasks: []coordinator.PushTaskUpdate{{
			ID:              s.TaskID,
			ExpectedVersion: s.SyncVersion,
			Status:          string(s.Status),
			Iteration:       s.Iteration,
		}},
	})
	if err != nil {
		return fmt.Errorf("sync push: %w", err)
	}
	return a.printJSON(resp)
}

func (a *App) syncPull(ctx context.Context, client *httpapi.Client, reg *forgefs.RegistrationFile, state *forgefs.StateFile) error {
	s, err := state.Load()
	if err != nil {
		return fmt.Errorf("sync pull: %w", err)
	}
	if s.TaskID == "" {
		fmt.Fprintln(a.stdout, "no active task to pull")
		return nil
	}
	resp, err := client.Pull(ctx, reg.ProjectID, coordinator.PullRequest{TaskIDs: []string{s.TaskID}})
	if err != nil {
		return fmt.Errorf("sync pull: %w", err)
	}
	return a.printJSON(resp)
}

func (a *App) syncPending(ctx context.Context, client *httpapi.Client, reg *forgefs.RegistrationFile) error {
	rows, err := client.ListTasks(ctx, reg.ProjectID, "queued")
	if err != nil {
		return fmt.Errorf("sync pending: %w", err)
	}
	return a.printJSON(rows)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
