package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ShayCichocki/foreman/internal/exec"
	"github.com/ShayCichocki/foreman/internal/git"
	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// ErrWorktreeExists indicates a task already has an active worktree.
var ErrWorktreeExists = errors.New("active worktree already exists for task")

// WorktreeProvisioner creates, releases, and destroys per-task worktrees.
// Provisioning is all-or-nothing: a partial failure rolls back the record,
// the checkout, and the branch so the task can be retried cleanly.
type WorktreeProvisioner struct {
	worktrees  state.WorktreeStore
	git        git.Runner
	cmd        exec.CommandRunner
	repoPath   string
	baseDir    string
	baseBranch string
	copyFiles  []string
	initHooks  []string
	debugLog   func(format string, args ...any)
}

// NewWorktreeProvisioner creates a provisioner.
func NewWorktreeProvisioner(worktrees state.WorktreeStore, gitRunner git.Runner, cmd exec.CommandRunner, opts Options) *WorktreeProvisioner {
	return &WorktreeProvisioner{
		worktrees:  worktrees,
		git:        gitRunner,
		cmd:        cmd,
		repoPath:   opts.RepoPath,
		baseDir:    opts.WorktreeDir,
		baseBranch: opts.BaseBranch,
		copyFiles:  opts.CopyFiles,
		initHooks:  opts.InitHooks,
		debugLog:   func(format string, args ...any) {},
	}
}

// SetDebugLog installs a debug logging function.
func (p *WorktreeProvisioner) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		p.debugLog = fn
	}
}

// BranchName returns the deterministic branch name for a task.
func (p *WorktreeProvisioner) BranchName(taskID string) string {
	return "task-" + taskID
}

// PathFor returns the deterministic worktree path for a task.
func (p *WorktreeProvisioner) PathFor(taskID string) string {
	return filepath.Join(p.baseDir, "task-"+taskID)
}

// Provision creates a worktree and branch for the task off the base
// branch, then initializes the workspace. Returns ErrWorktreeExists when
// the task already has an active worktree.
func (p *WorktreeProvisioner) Provision(ctx context.Context, task *models.Task) (*models.Worktree, error) {
	existing, err := p.worktrees.GetActiveWorktreeForTask(task.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing worktree for task %s: %w", task.ID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("task %s: %w", task.ID, ErrWorktreeExists)
	}

	w := &models.Worktree{
		ID:         uuid.New().String(),
		Project:    p.repoPath,
		Branch:     p.BranchName(task.ID),
		Path:       p.PathFor(task.ID),
		BaseBranch: p.baseBranch,
		TaskID:     task.ID,
		Status:     models.WorktreeActive,
	}

	if err := p.worktrees.CreateWorktree(w); err != nil {
		return nil, fmt.Errorf("record worktree for task %s: %w", task.ID, err)
	}

	if err := p.git.WorktreeAddNewBranch(w.Path, w.Branch, w.BaseBranch); err != nil {
		p.rollback(w, false)
		return nil, fmt.Errorf("create worktree for task %s: %w", task.ID, err)
	}

	if err := p.initWorkspace(ctx, w.Path); err != nil {
		p.rollback(w, true)
		return nil, fmt.Errorf("initialize worktree for task %s: %w", task.ID, err)
	}

	p.debugLog("provisioned worktree %s for task %s at %s", w.ID, task.ID, w.Path)
	return w, nil
}

// rollback undoes a partial provision. Errors during rollback are logged
// and swallowed; the worst case is a stale checkout the next Provision or
// a prune will clear.
func (p *WorktreeProvisioner) rollback(w *models.Worktree, checkoutCreated bool) {
	if err := p.worktrees.DeleteWorktree(w.ID); err != nil {
		p.debugLog("rollback: delete worktree record %s: %v", w.ID, err)
	}
	if !checkoutCreated {
		return
	}
	if err := p.git.WorktreeRemove(w.Path); err != nil {
		p.debugLog("rollback: remove worktree %s: %v", w.Path, err)
		_ = os.RemoveAll(w.Path)
	}
	if err := p.git.WorktreePruneExpireNow(); err != nil {
		p.debugLog("rollback: prune worktrees: %v", err)
	}
	if err := p.git.DeleteBranch(w.Branch); err != nil {
		p.debugLog("rollback: delete branch %s: %v", w.Branch, err)
	}
}

// initWorkspace copies configured files from the repository root into the
// worktree and runs init hooks inside it.
func (p *WorktreeProvisioner) initWorkspace(ctx context.Context, path string) error {
	for _, rel := range p.copyFiles {
		src := filepath.Join(p.repoPath, rel)
		dst := filepath.Join(path, rel)
		if err := copyFile(src, dst); err != nil {
			if os.IsNotExist(err) {
				p.debugLog("workspace init: %s not present, skipping copy", rel)
				continue
			}
			return fmt.Errorf("copy %s: %w", rel, err)
		}
	}
	for _, hook := range p.initHooks {
		out, err := p.cmd.RunShell(ctx, path, hook)
		if err != nil {
			return fmt.Errorf("init hook %q: %w: %s", hook, err, string(out))
		}
	}
	return nil
}

// Release clears worker ownership of the worktree and marks it released.
// The checkout stays on disk for review and merge.
func (p *WorktreeProvisioner) Release(worktreeID string) error {
	if err := p.worktrees.ReleaseWorktree(worktreeID); err != nil {
		return fmt.Errorf("release worktree %s: %w", worktreeID, err)
	}
	return nil
}

// Destroy removes the worktree checkout, its branch, and its record.
// Destroying an unknown worktree is a no-op.
func (p *WorktreeProvisioner) Destroy(worktreeID string) error {
	w, err := p.worktrees.GetWorktree(worktreeID)
	if err != nil {
		return fmt.Errorf("load worktree %s: %w", worktreeID, err)
	}
	if w == nil {
		return nil
	}

	if err := p.git.WorktreeUnlock(w.Path); err != nil {
		p.debugLog("destroy: unlock worktree %s: %v", w.Path, err)
	}
	if err := p.git.WorktreeRemove(w.Path); err != nil {
		p.debugLog("destroy: remove worktree %s: %v", w.Path, err)
		if rmErr := os.RemoveAll(w.Path); rmErr != nil {
			return fmt.Errorf("remove worktree directory %s: %w", w.Path, rmErr)
		}
	}
	if err := p.git.WorktreePruneExpireNow(); err != nil {
		p.debugLog("destroy: prune worktrees: %v", err)
	}
	// The branch may already be merged or hand-deleted; not fatal.
	if err := p.git.DeleteBranch(w.Branch); err != nil {
		p.debugLog("destroy: delete branch %s: %v", w.Branch, err)
	}

	if err := p.worktrees.DeleteWorktree(w.ID); err != nil {
		return fmt.Errorf("delete worktree record %s: %w", w.ID, err)
	}
	p.debugLog("destroyed worktree %s (branch %s)", w.ID, w.Branch)
	return nil
}

// copyFile copies a regular file, creating parent directories as needed.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
