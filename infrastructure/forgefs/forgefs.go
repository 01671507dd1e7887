// Package forgefs implements the agent's on-disk `.forge/` layout (§6):
// the command inbox, transcript mirror, workspace diff, and local state
// file the agentloop.Driver needs to run outside a same-process test
// harness. It follows the teacher's badger outbox convention of
// JSON-marshaled structs under a single root, swapped for plain files
// since `.forge/` is meant to be human-inspectable.
package forgefs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/relaysync/conductor/application/agentloop"
)

// Dir is the root of a workspace's `.forge/` directory.
type Dir struct {
	workspaceRoot string
	root          string
}

// Open ensures root/.forge and its subdirectories exist and returns a
// handle to them.
func Open(workspaceRoot string) (*Dir, error) {
	root := filepath.Join(workspaceRoot, ".forge")
	for _, sub := range []string{"", "runs", "checkpoints", "tasks"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &Dir{workspaceRoot: workspaceRoot, root: root}, nil
}

// WorkspaceRoot returns the directory `.forge/` lives under.
func (d *Dir) WorkspaceRoot() string {
	return d.workspaceRoot
}

// Path joins elem onto the `.forge/` root.
func (d *Dir) Path(elem ...string) string {
	return filepath.Join(append([]string{d.root}, elem...)...)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// StateFile persists agentloop.State to `.forge/state.json`.
type StateFile struct {
	dir *Dir
}

// NewStateFile builds a StateFile rooted at dir.
func NewStateFile(dir *Dir) *StateFile {
	return &StateFile{dir: dir}
}

// Save implements agentloop.StatePersister.
func (f *StateFile) Save(_ context.Context, s agentloop.State) error {
	return writeJSONAtomic(f.dir.Path("state.json"), s)
}

// Load reads the last-persisted state, if any. A missing file is not an
// error; it means no task is currently active.
func (f *StateFile) Load() (*agentloop.State, error) {
	data, err := os.ReadFile(f.dir.Path("state.json"))
	if errors.Is(err, os.ErrNotExist) {
		return &agentloop.State{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s agentloop.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// commandFile is the on-disk shape of `.forge/command.json`.
type commandFile struct {
	Type   agentloop.CommandType `json:"type"`
	Reason string                `json:"reason,omitempty"`
}

// CommandInbox reads and deletes `.forge/command.json`.
type CommandInbox struct {
	dir *Dir
}

// NewCommandInbox builds a CommandInbox rooted at dir.
func NewCommandInbox(dir *Dir) *CommandInbox {
	return &CommandInbox{dir: dir}
}

// Next implements agentloop.CommandInbox.
func (c *CommandInbox) Next(_ context.Context) (*agentloop.Command, error) {
	path := c.dir.Path("command.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cf commandFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &agentloop.Command{Type: cf.Type, Reason: cf.Reason}, nil
}

// Watcher blocks until `.forge/transcript.txt` or `.forge/command.json`
// changes, so the `init` drive loop can react to the parent runtime's
// next turn instead of polling on a fixed interval. Grounded on the
// teacher's filesystem pack's `fs_watch` tool, which wraps the same
// fsnotify.Watcher around a directory and filters for paths of interest.
type Watcher struct {
	w *fsnotify.Watcher
}

// NewWatcher opens a Watcher on dir's `.forge/` directory.
func NewWatcher(dir *Dir) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir.root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{w: w}, nil
}

// Close releases the underlying OS watch.
func (w *Watcher) Close() error {
	return w.w.Close()
}

// Wait blocks until transcript.txt or command.json changes, ctx is
// canceled, or timeout elapses (whichever comes first). It returns
// promptly on timeout rather than erroring, since a quiet tick is a
// normal outcome while waiting on a slow parent-runtime turn.
func (w *Watcher) Wait(ctx context.Context, timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case err, ok := <-w.w.Errors:
			if !ok || err != nil {
				return
			}
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if name == "transcript.txt" || name == "command.json" {
				return
			}
		}
	}
}

// Transcript reads the parent runtime's latest turn output from
// `.forge/transcript.txt`, written externally between ticks. A missing
// file reads as an empty transcript rather than an error, since the
// first tick of a freshly claimed task has nothing to ingest yet.
type Transcript struct {
	dir *Dir
}

// NewTranscript builds a Transcript rooted at dir.
func NewTranscript(dir *Dir) *Transcript {
	return &Transcript{dir: dir}
}

// Read implements agentloop.TranscriptSource.
func (t *Transcript) Read(_ context.Context) (string, error) {
	data, err := os.ReadFile(t.dir.Path("transcript.txt"))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GitDiff reports files changed in the workspace since the last call,
// via `git status --porcelain`, deduplicated against what it has
// already reported once in a run.
type GitDiff struct {
	workspaceRoot string
	seen          map[string]bool
}

// NewGitDiff builds a GitDiff rooted at workspaceRoot.
func NewGitDiff(workspaceRoot string) *GitDiff {
	return &GitDiff{workspaceRoot: workspaceRoot, seen: make(map[string]bool)}
}

// Changed implements agentloop.WorkspaceDiff.
func (g *GitDiff) Changed(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = g.workspaceRoot
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, nil
		}
		return nil, err
	}

	var fresh []string
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if g.seen[path] {
			continue
		}
		g.seen[path] = true
		fresh = append(fresh, path)
	}
	return fresh, nil
}

// RegistrationFile is the on-disk shape of `.forge/config.json`,
// written by `register` and read by `sync`/`queue-tasks`/`init`.
type RegistrationFile struct {
	URL       string `json:"url"`
	ProjectID string `json:"projectId"`
	NodeID    string `json:"nodeId"`
}

// SaveRegistration writes `.forge/config.json`.
func (d *Dir) SaveRegistration(r RegistrationFile) error {
	return writeJSONAtomic(d.Path("config.json"), r)
}

// LoadRegistration reads `.forge/config.json`, failing if `register`
// has not been run yet in this workspace.
func (d *Dir) LoadRegistration() (*RegistrationFile, error) {
	data, err := os.ReadFile(d.Path("config.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.New("forgefs: not registered; run `conductor register` first")
	}
	if err != nil {
		return nil, err
	}
	var r RegistrationFile
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
