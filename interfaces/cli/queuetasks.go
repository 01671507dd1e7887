package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/forgefs"
	"github.com/relaysync/conductor/interfaces/httpapi"
)

// taskDefFile is the on-disk shape of `.forge/tasks/<id>.yaml`.
type taskDefFile struct {
	Name     string      `yaml:"name"`
	Prompt   string      `yaml:"prompt"`
	Priority int         `yaml:"priority"`
	Config   task.Config `yaml:"config"`
}

// newQueueTasksCmd creates the `queue-tasks` command.
func (a *App) newQueueTasksCmd() *cobra.Command {
	var (
		all    bool
		taskID string
		planID string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "queue-tasks",
		Short: "Define tasks from .forge/tasks/*.yaml on the coordinator's queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.queueTasks(cmd, all, taskID, planID, dryRun)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Queue every task definition under .forge/tasks/")
	cmd.Flags().StringVar(&taskID, "task", "", "Queue a single task definition by id")
	cmd.Flags().StringVar(&planID, "plan", "", "Queue every task definition whose dependsOn chain starts at planID")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be queued without calling the coordinator")

	return cmd
}

func (a *App) queueTasks(cmd *cobra.Command, all bool, taskID, planID string, dryRun bool) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("queue-tasks: %w", err)
	}
	dir, err := forgefs.Open(wd)
	if err != nil {
		return fmt.Errorf("queue-tasks: %w", err)
	}
	reg, err := dir.LoadRegistration()
	if err != nil {
		return fmt.Errorf("queue-tasks: %w", err)
	}

	ids, err := selectTaskDefs(dir, all, taskID, planID)
	if err != nil {
		return fmt.Errorf("queue-tasks: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(a.stdout, "no task definitions selected; use --all, --task or --plan")
		return nil
	}

	client := httpapi.NewClient(reg.URL)
	ctx := cmd.Context()

	for _, id := range ids {
		def, err := loadTaskDef(dir, id)
		if err != nil {
			return fmt.Errorf("queue-tasks: %s: %w", id, err)
		}
		if dryRun {
			fmt.Fprintf(a.stdout, "would queue %s: %q (priority %d)\n", id, def.Name, def.Priority)
			continue
		}
		t, err := client.CreateTask(ctx, reg.ProjectID, httpapi.CreateTaskRequest{
			ID:       id,
			Name:     def.Name,
			Prompt:   def.Prompt,
			Priority: def.Priority,
			Config:   def.Config,
		})
		if err != nil {
			return fmt.Errorf("queue-tasks: %s: %w", id, err)
		}
		fmt.Fprintf(a.stdout, "queued %s (status %s)\n", t.ID, t.Status)
	}
	return nil
}

// selectTaskDefs resolves --all/--task/--plan against `.forge/tasks/*.yaml`.
// --plan walks DependsOn chains transitively starting from planID, since a
// plan is just the task definition whose dependents form the rest of the
// batch.
func selectTaskDefs(dir *forgefs.Dir, all bool, taskID, planID string) ([]string, error) {
	entries, err := os.ReadDir(dir.Path("tasks"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	defs := make(map[string]taskDefFile)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".yaml")
		def, err := loadTaskDef(dir, id)
		if err != nil {
			return nil, err
		}
		defs[id] = *def
	}

	switch {
	case taskID != "":
		if _, ok := defs[taskID]; !ok {
			return nil, fmt.Errorf("no task definition %q", taskID)
		}
		return []string{taskID}, nil
	case planID != "":
		return dependentsOf(defs, planID), nil
	case all:
		ids := make([]string, 0, len(defs))
		for id := range defs {
			ids = append(ids, id)
		}
		return ids, nil
	default:
		return nil, nil
	}
}

// dependentsOf returns rootID plus every definition that transitively
// depends on it, in no particular order; the coordinator's queue is
// priority-ordered regardless of insertion order.
func dependentsOf(defs map[string]taskDefFile, rootID string) []string {
	out := []string{rootID}
	changed := true
	seen := map[string]bool{rootID: true}
	for changed {
		changed = false
		for id, def := range defs {
			if seen[id] {
				continue
			}
			for _, dep := range def.Config.DependsOn {
				if seen[dep] {
					out = append(out, id)
					seen[id] = true
					changed = true
					break
				}
			}
		}
	}
	return out
}

func loadTaskDef(dir *forgefs.Dir, id string) (*taskDefFile, error) {
	data, err := os.ReadFile(dir.Path("tasks", id+".yaml"))
	if err != nil {
		return nil, err
	}
	var def taskDefFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}
