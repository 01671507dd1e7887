package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaysync/conductor/infrastructure/forgefs"
	"github.com/relaysync/conductor/interfaces/httpapi"
)

func randomID(prefix string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return prefix + "-" + hex.EncodeToString(buf)
}

// newRegisterCmd creates the `register` command.
func (a *App) newRegisterCmd() *cobra.Command {
	var coordinatorURL string

	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register this workspace with a coordinator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.register(cmd, args[0], coordinatorURL)
		},
	}

	cmd.Flags().StringVar(&coordinatorURL, "url", "http://localhost:3344", "Coordinator base URL")

	return cmd
}

func (a *App) register(cmd *cobra.Command, name, coordinatorURL string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	dir, err := forgefs.Open(wd)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	client := httpapi.NewClient(coordinatorURL)
	ctx := cmd.Context()

	project, err := client.CreateProject(ctx, httpapi.CreateProjectRequest{ID: name, Name: name, Path: wd})
	if err != nil {
		return fmt.Errorf("register: create project: %w", err)
	}

	nodeID := randomID("node")
	if err := client.RegisterNode(ctx, httpapi.RegisterNodeRequest{
		NodeID:    nodeID,
		ProjectID: project.ID,
		NodeType:  "agent",
	}); err != nil {
		return fmt.Errorf("register: register node: %w", err)
	}

	if err := dir.SaveRegistration(forgefs.RegistrationFile{
		URL:       coordinatorURL,
		ProjectID: project.ID,
		NodeID:    nodeID,
	}); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	fmt.Fprintf(a.stdout, "Registered %q as node %s against %s\n", project.ID, nodeID, coordinatorURL)
	return nil
}
