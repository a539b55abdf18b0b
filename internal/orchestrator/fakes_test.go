package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/internal/git"
	"github.com/ShayCichocki/foreman/internal/runner"
	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// fakeGit is an in-memory git.Runner. Every operation succeeds unless a
// failure is configured.
type fakeGit struct {
	headCommits      map[string]string
	worktreeAddErr   error
	checkoutErr      error
	mergeErrFor      map[string]error
	conflicted       []string
	checkedOut       []string
	merged           []string
	aborted          int
	addedWorktrees   []string
	removedWorktrees []string
	deletedBranches  []string
	fetched          []string
	pushed           []string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		headCommits: make(map[string]string),
		mergeErrFor: make(map[string]error),
	}
}

func (g *fakeGit) CurrentBranch() (string, error) { return "main", nil }

func (g *fakeGit) CheckoutBranch(name string) error {
	if g.checkoutErr != nil {
		return g.checkoutErr
	}
	g.checkedOut = append(g.checkedOut, name)
	return nil
}

func (g *fakeGit) BranchExists(name string) (bool, error) {
	_, ok := g.headCommits[name]
	return ok, nil
}

func (g *fakeGit) DeleteBranch(name string) error {
	g.deletedBranches = append(g.deletedBranches, name)
	return nil
}

func (g *fakeGit) HeadCommit(ref string) (string, error) {
	if c, ok := g.headCommits[ref]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown ref %s", ref)
}

func (g *fakeGit) MergeNoFF(branch string) error {
	return g.MergeNoFFMessage(branch, "")
}

func (g *fakeGit) MergeNoFFMessage(branch, message string) error {
	if err := g.mergeErrFor[branch]; err != nil {
		return err
	}
	g.merged = append(g.merged, branch)
	return nil
}

func (g *fakeGit) MergeAbort() error {
	g.aborted++
	return nil
}

func (g *fakeGit) ConflictedFiles() ([]string, error) {
	return g.conflicted, nil
}

func (g *fakeGit) DiffBetween(ref1, ref2 string) (string, error) { return "", nil }

func (g *fakeGit) WorktreeAddNewBranch(path, branch, base string) error {
	if g.worktreeAddErr != nil {
		return g.worktreeAddErr
	}
	g.addedWorktrees = append(g.addedWorktrees, path)
	g.headCommits[branch] = "deadbeef"
	return nil
}

func (g *fakeGit) WorktreeRemove(path string) error {
	g.removedWorktrees = append(g.removedWorktrees, path)
	return nil
}

func (g *fakeGit) WorktreeUnlock(path string) error { return nil }

func (g *fakeGit) WorktreeListPorcelain() (string, error) { return "", nil }

func (g *fakeGit) WorktreePruneExpireNow() error { return nil }

func (g *fakeGit) Fetch(remote, branch string) error {
	g.fetched = append(g.fetched, remote+"/"+branch)
	return nil
}

func (g *fakeGit) Push(remote, branch string) error {
	g.pushed = append(g.pushed, remote+"/"+branch)
	return nil
}

func (g *fakeGit) Run(args ...string) (string, error) { return "", nil }

var _ git.Runner = (*fakeGit)(nil)

// fakeRunner is an in-memory runner.Runner with controllable liveness.
type fakeRunner struct {
	canSpawn bool
	reason   string
	spawnErr error
	nextID   int
	alive    map[string]bool
	handles  map[string]*runner.Handle
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		canSpawn: true,
		alive:    make(map[string]bool),
		handles:  make(map[string]*runner.Handle),
	}
}

func (r *fakeRunner) CanSpawn() (bool, string, int) {
	return r.canSpawn, r.reason, 0
}

func (r *fakeRunner) Spawn(ctx context.Context, req runner.SpawnRequest) (*runner.Handle, error) {
	if r.spawnErr != nil {
		return nil, r.spawnErr
	}
	r.nextID++
	h := &runner.Handle{
		SessionID: fmt.Sprintf("sess-%d", r.nextID),
		RunID:     fmt.Sprintf("run-%d", r.nextID),
		PID:       1000 + r.nextID,
	}
	r.handles[h.SessionID] = h
	r.alive[h.SessionID] = true
	return h, nil
}

func (r *fakeRunner) GetRunning(sessionID string) *runner.Handle {
	if r.alive[sessionID] {
		return r.handles[sessionID]
	}
	return nil
}

var _ runner.Runner = (*fakeRunner)(nil)

// fakeCmd is a no-op exec.CommandRunner.
type fakeCmd struct {
	shellErr error
	ran      []string
}

func (c *fakeCmd) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	return nil, nil
}

func (c *fakeCmd) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	if c.shellErr != nil {
		return []byte("hook output"), c.shellErr
	}
	c.ran = append(c.ran, command)
	return nil, nil
}

func (c *fakeCmd) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }

// newTestOrchestrator wires an Orchestrator over a real migrated store and
// the given fakes.
func newTestOrchestrator(t *testing.T, fg *fakeGit, fr *fakeRunner) (*Orchestrator, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	o := New(db, fg, fr, &fakeCmd{}, Options{
		RepoPath:      "/repo",
		BaseBranch:    "main",
		WorktreeDir:   t.TempDir(),
		MaxConcurrent: 4,
	})
	return o, db
}

// mustCreateTask inserts a task with sensible defaults.
func mustCreateTask(t *testing.T, db *state.DB, task *models.Task) *models.Task {
	t.Helper()
	if task.Title == "" {
		task.Title = "task " + task.ID
	}
	if task.Status == "" {
		task.Status = models.TaskStatusOpen
	}
	if task.Type == "" {
		task.Type = models.TaskTypeFeature
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("create task %s: %v", task.ID, err)
	}
	return task
}

// mustDependOn records a blocking dependency.
func mustDependOn(t *testing.T, db *state.DB, taskID, dependsOn string) {
	t.Helper()
	err := db.CreateDependency(&models.Dependency{
		TaskID:    taskID,
		DependsOn: dependsOn,
		Kind:      models.DependencyBlocks,
	})
	if err != nil {
		t.Fatalf("create dependency %s -> %s: %v", taskID, dependsOn, err)
	}
}
