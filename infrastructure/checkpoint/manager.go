// Package checkpoint implements the working-tree snapshot/rollback
// manager described in §4.9, backed by go-git plumbing objects rather
// than porcelain git-stash (which go-git does not expose).
package checkpoint

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"

	domaincheckpoint "github.com/relaysync/conductor/domain/checkpoint"
	"github.com/relaysync/conductor/infrastructure/logging"
)

// Manager creates and restores checkpoints for one workspace.
type Manager struct {
	repo *git.Repository
	wt   *git.Worktree
	now  func() time.Time
}

// NewManager opens the git repository at repoPath and returns a Manager
// for it.
func NewManager(repoPath string) (*Manager, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	return &Manager{repo: repo, wt: wt, now: time.Now}, nil
}

// Create snapshots the working tree and persists a new checkpoint to
// store, pruning older checkpoints for the task beyond keep (§4.9).
func (m *Manager) Create(
	ctx context.Context,
	store domaincheckpoint.Store,
	taskID string,
	iterationNum int,
	cpType domaincheckpoint.Type,
	metrics domaincheckpoint.MetricsSnapshot,
	keep int,
) (domaincheckpoint.Checkpoint, error) {
	stashRef := m.snapshot(taskID)

	cp := domaincheckpoint.Checkpoint{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Iteration: iterationNum,
		Type:      cpType,
		CreatedAt: m.now().UTC(),
		StashRef:  stashRef,
		Metrics:   metrics,
	}

	if err := store.Save(ctx, cp); err != nil {
		return domaincheckpoint.Checkpoint{}, err
	}
	if keep > 0 {
		if err := store.Prune(ctx, taskID, keep); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Add(logging.Reason("checkpoint prune failed")).Msg("checkpoint prune")
		}
	}
	return cp, nil
}

// Rollback restores the most recent checkpoint's working-tree snapshot
// (a no-op for the clean/none sentinels) and returns it so the caller
// can restore its own metrics and truncate iteration history.
func (m *Manager) Rollback(ctx context.Context, store domaincheckpoint.Store, taskID string) (domaincheckpoint.Checkpoint, bool, error) {
	cp, ok, err := store.Latest(ctx, taskID)
	if err != nil || !ok {
		return domaincheckpoint.Checkpoint{}, ok, err
	}
	if err := m.restore(cp.StashRef); err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Add(logging.Str("checkpoint_id", cp.ID)).Msg("checkpoint restore failed")
	}
	return cp, true, nil
}

// snapshot walks the entire working tree (tracked and untracked,
// skipping .git) and writes it as a content-addressed git tree object,
// returning its hash as the stash ref. Any failure along the way is
// logged and non-fatal, per §4.9 — the stash ref degrades to "none".
func (m *Manager) snapshot(taskID string) string {
	status, err := m.wt.Status()
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Add(logging.Str("task_id", taskID)).Msg("checkpoint status failed")
		return domaincheckpoint.StashRefNone
	}
	if status.IsClean() {
		return domaincheckpoint.StashRefClean
	}

	files, err := m.collectFiles()
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Add(logging.Str("task_id", taskID)).Msg("checkpoint snapshot failed")
		return domaincheckpoint.StashRefNone
	}
	if len(files) == 0 {
		return domaincheckpoint.StashRefClean
	}

	hash, err := m.buildTree("", files)
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Add(logging.Str("task_id", taskID)).Msg("checkpoint tree write failed")
		return domaincheckpoint.StashRefNone
	}
	return hash.String()
}

type fileEntry struct {
	path string
	data []byte
}

// collectFiles walks the worktree filesystem, skipping the .git
// directory, returning every regular file's path and contents.
func (m *Manager) collectFiles() ([]fileEntry, error) {
	var files []fileEntry
	var walk func(dir string) error
	walk = func(dir string) error {
		infos, err := m.wt.Filesystem.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, info := range infos {
			if info.Name() == ".git" {
				continue
			}
			rel := path.Join(dir, info.Name())
			if info.IsDir() {
				if err := walk(rel); err != nil {
					return err
				}
				continue
			}
			f, err := m.wt.Filesystem.Open(rel)
			if err != nil {
				return err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			files = append(files, fileEntry{path: rel, data: data})
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	return files, nil
}

// buildTree writes files as blobs and assembles them into a (possibly
// nested) git tree object rooted at prefix, returning the root tree's
// hash.
func (m *Manager) buildTree(prefix string, files []fileEntry) (plumbing.Hash, error) {
	direct := map[string]fileEntry{}
	dirs := map[string][]fileEntry{}

	for _, f := range files {
		rel := strings.TrimPrefix(f.path, prefix)
		rel = strings.TrimPrefix(rel, "/")
		parts := strings.SplitN(rel, "/", 2)
		if len(parts) == 1 {
			direct[parts[0]] = f
			continue
		}
		dirs[parts[0]] = append(dirs[parts[0]], f)
	}

	var entries []object.TreeEntry
	for name, f := range direct {
		hash, err := m.writeBlob(f.data)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: hash})
	}
	for name, children := range dirs {
		hash, err := m.buildTree(path.Join(prefix, name), children)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	tree := object.Tree{Entries: entries}
	obj := m.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return m.repo.Storer.SetEncodedObject(obj)
}

func (m *Manager) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := m.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return m.repo.Storer.SetEncodedObject(obj)
}

// restore writes every file recorded in the tree identified by stashRef
// back onto the working tree filesystem. The clean/none sentinels are
// no-ops.
func (m *Manager) restore(stashRef string) error {
	if stashRef == domaincheckpoint.StashRefClean || stashRef == domaincheckpoint.StashRefNone || stashRef == "" {
		return nil
	}
	hash := plumbing.NewHash(stashRef)
	tree, err := object.GetTree(m.repo.Storer, hash)
	if err != nil {
		return err
	}
	return tree.Files().ForEach(func(f *object.File) error {
		contents, err := f.Contents()
		if err != nil {
			return err
		}
		return m.writeWorktreeFile(f.Name, []byte(contents))
	})
}

func (m *Manager) writeWorktreeFile(rel string, data []byte) error {
	fs := m.wt.Filesystem
	if dir := path.Dir(rel); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := fs.Create(rel)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.Write(data)
	return err
}
