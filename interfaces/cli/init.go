package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaysync/conductor/application/agentloop"
	"github.com/relaysync/conductor/domain/criteria"
	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/forgefs"
	"github.com/relaysync/conductor/interfaces/httpapi"
)

// newInitCmd creates the `init` command.
func (a *App) newInitCmd() *cobra.Command {
	var (
		until         []string
		name          string
		priority      int
		maxIterations int
	)

	cmd := &cobra.Command{
		Use:   "init <prompt>",
		Short: "Queue a new task from prompt and drive it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.initTask(cmd, args[0], name, priority, maxIterations, until)
		},
	}

	cmd.Flags().StringSliceVar(&until, "until", nil, "Completion criterion (repeatable): promise:<text>, command:<cmd>, file-exists:<path>")
	cmd.Flags().StringVar(&name, "name", "", "Task name (defaults to a prefix of the prompt)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Task priority")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 25, "Iteration budget before the task is marked failed")

	return cmd
}

// parseUntil turns one --until flag value into a Criterion. The
// "variant:rest" shape covers the handful of variants a human would
// type on a command line; richer criteria (coverage thresholds, lint
// budgets) belong in a `.forge/tasks/*.yaml` definition instead.
func parseUntil(i int, spec string) criteria.Criterion {
	variant, rest, ok := strings.Cut(spec, ":")
	if !ok {
		variant, rest = "promise", spec
	}
	cfg := criteria.Config{Variant: criteria.Variant(variant)}
	switch criteria.Variant(variant) {
	case criteria.VariantCommand, criteria.VariantCustomScript:
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			cfg.Command = fields[0]
			cfg.Args = fields[1:]
		}
	case criteria.VariantFileExists, criteria.VariantFileContains:
		cfg.Path = rest
	case criteria.VariantCoverage:
		if pct, err := strconv.ParseFloat(rest, 64); err == nil {
			cfg.MinPercent = pct
		}
	default:
		cfg.Variant = criteria.VariantPromise
		cfg.Text = rest
	}
	return criteria.Criterion{Name: fmt.Sprintf("until-%d", i), Config: cfg, Weight: 1, Required: true}
}

func (a *App) initTask(cmd *cobra.Command, prompt, name string, priority, maxIterations int, until []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	dir, err := forgefs.Open(wd)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	reg, err := dir.LoadRegistration()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	if name == "" {
		name = prompt
		if len(name) > 40 {
			name = name[:40]
		}
	}

	criteriaList := make([]criteria.Criterion, 0, len(until))
	for i, spec := range until {
		criteriaList = append(criteriaList, parseUntil(i, spec))
	}
	mode := criteria.ModeAll

	client := httpapi.NewClient(reg.URL)
	ctx := cmd.Context()

	taskID := randomID("task")
	t, err := client.CreateTask(ctx, reg.ProjectID, httpapi.CreateTaskRequest{
		ID:       taskID,
		Name:     name,
		Prompt:   prompt,
		Priority: priority,
		Config: task.Config{
			Criteria:      criteriaList,
			Mode:          mode,
			RequiredScore: 1.0,
			MaxIterations: maxIterations,
		},
	})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Fprintf(a.stdout, "queued %s, driving to completion...\n", t.ID)

	return a.drive(ctx, dir, client, reg)
}

// drive claims the next queued task for reg's project and ticks the
// agent loop driver until it signals exit (the task reached a terminal
// state or was paused) or approve. On continue it prints the prompt,
// waits up to 5s for a transcript or command change, and ticks again,
// matching the teacher's run.go
// "execute until terminal state" shape but against the coordinator's
// remote protocol instead of an in-process engine.
func (a *App) drive(ctx context.Context, dir *forgefs.Dir, client *httpapi.Client, reg *forgefs.RegistrationFile) error {
	driver, err := agentloop.NewDriver(agentloop.Config{
		Coordinator: client,
		Inbox:       forgefs.NewCommandInbox(dir),
		Transcript:  forgefs.NewTranscript(dir),
		Diff:        forgefs.NewGitDiff(dir.WorkspaceRoot()),
		Persister:   forgefs.NewStateFile(dir),
	})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	watcher, err := forgefs.NewWatcher(dir)
	if err != nil {
		return fmt.Errorf("init: watch: %w", err)
	}
	defer watcher.Close()

	state := &agentloop.State{}
	claimed, err := driver.Claim(ctx, state, reg.ProjectID, reg.NodeID)
	if err != nil {
		return fmt.Errorf("init: claim: %w", err)
	}
	if !claimed {
		fmt.Fprintln(a.stdout, "no queued task available to claim")
		return nil
	}

	for {
		signal, err := driver.Tick(ctx, state)
		if err != nil {
			return fmt.Errorf("init: tick: %w", err)
		}
		switch signal.Type {
		case agentloop.SignalExit:
			fmt.Fprintf(a.stdout, "task %s finished: %s\n", state.TaskID, signal.Reason)
			return nil
		case agentloop.SignalApprove:
			return nil
		case agentloop.SignalContinue:
			fmt.Fprintln(a.stdout, signal.Prompt)
			watcher.Wait(ctx, 5*time.Second)
		}
	}
}
