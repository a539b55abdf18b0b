package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/foreman/internal/exec"
	"github.com/ShayCichocki/foreman/internal/git"
	"github.com/ShayCichocki/foreman/internal/runner"
	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// Orchestrator ties the resolver, provisioner, spawner, reconciler, and
// merge coordinator together over one project's state store and git repo.
type Orchestrator struct {
	tasks       state.TaskStore
	worktrees   state.WorktreeStore
	docs        state.DocumentStore
	git         git.Runner
	runner      runner.Runner
	resolver    *TaskGraphResolver
	provisioner *WorktreeProvisioner
	spawner     *AgentSpawner
	opts        Options
	debugLog    func(format string, args ...any)

	// mu serializes orchestration-state writes and the check-then-create
	// worktree section. One Orchestrator per process per project.
	mu sync.Mutex
}

// New creates an Orchestrator.
func New(store state.Store, gitRunner git.Runner, agentRunner runner.Runner, cmd exec.CommandRunner, opts Options) *Orchestrator {
	o := &Orchestrator{
		tasks:     store,
		worktrees: store,
		docs:      store,
		git:       gitRunner,
		runner:    agentRunner,
		opts:      opts,
		debugLog:  func(format string, args ...any) {},
	}
	o.resolver = NewTaskGraphResolver(store)
	o.provisioner = NewWorktreeProvisioner(store, gitRunner, cmd, opts)
	o.spawner = NewAgentSpawner(agentRunner, store)
	return o
}

// SetDebugLog installs a debug logging function on the orchestrator and
// its components.
func (o *Orchestrator) SetDebugLog(fn func(format string, args ...any)) {
	if fn == nil {
		return
	}
	o.debugLog = fn
	o.resolver.SetDebugLog(fn)
	o.provisioner.SetDebugLog(fn)
	o.spawner.SetDebugLog(fn)
}

// Provisioner exposes the worktree provisioner for direct worktree
// commands (release, destroy).
func (o *Orchestrator) Provisioner() *WorktreeProvisioner {
	return o.provisioner
}

// SkippedTask records a ready task that was not spawned this pass and why.
type SkippedTask struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

// OrchestrateResult reports the outcome of one orchestration pass.
type OrchestrateResult struct {
	Spawned      []models.SpawnedAgent `json:"spawned"`
	Skipped      []SkippedTask         `json:"skipped"`
	SpawnedCount int                   `json:"spawned_count"`
	SkippedCount int                   `json:"skipped_count"`
}

// OrchestrateReadyTasks resolves ready descendants of parentTaskID and
// spawns a worker per task under parentSessionID, up to maxConcurrent
// concurrently live workers. Every ready task is either spawned or
// reported skipped with a reason; skipped tasks stay ready for the next
// pass. In plan mode nothing is mutated.
func (o *Orchestrator) OrchestrateReadyTasks(ctx context.Context, parentTaskID, parentSessionID string, maxConcurrent int, mode Mode) (*OrchestrateResult, error) {
	if o.runner == nil {
		return nil, fmt.Errorf("no agent runner configured")
	}
	if parentSessionID == "" {
		return nil, fmt.Errorf("parent session id is required")
	}
	if parentTaskID == "" {
		return nil, fmt.Errorf("parent task id is required")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unsupported orchestration mode %q", mode)
	}

	ready, err := o.resolver.ReadyDescendants(parentTaskID)
	if err != nil {
		return nil, err
	}

	result := &OrchestrateResult{}

	if mode == ModePlan {
		for _, task := range ready {
			result.Skipped = append(result.Skipped, SkippedTask{
				TaskID: task.ID,
				Reason: "plan mode: would spawn",
			})
		}
		result.SkippedCount = len(result.Skipped)
		return result, nil
	}

	if ok, reason, depth := o.runner.CanSpawn(); !ok {
		return nil, fmt.Errorf("cannot spawn workers (depth %d): %s", depth, reason)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st, doc, err := loadAgentState(o.docs, parentSessionID)
	if err != nil {
		return nil, err
	}

	if maxConcurrent <= 0 {
		maxConcurrent = o.opts.MaxConcurrent
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	budget := maxConcurrent - len(st.Spawned)
	if budget < 0 {
		budget = 0
	}

	for _, task := range ready {
		if st.HasSpawnedForTask(task.ID) {
			result.Skipped = append(result.Skipped, SkippedTask{
				TaskID: task.ID,
				Reason: "already has a spawned worker in this session",
			})
			continue
		}
		if budget == 0 {
			result.Skipped = append(result.Skipped, SkippedTask{
				TaskID: task.ID,
				Reason: fmt.Sprintf("concurrency limit %d reached", maxConcurrent),
			})
			continue
		}

		rec, reason := o.spawnOne(ctx, task)
		if rec == nil {
			result.Skipped = append(result.Skipped, SkippedTask{TaskID: task.ID, Reason: reason})
			continue
		}

		st.Spawned = append(st.Spawned, *rec)
		if err := saveAgentState(o.docs, doc, st); err != nil {
			// The worker is already running; losing this write would orphan
			// it, so surface the error with what we managed to spawn.
			result.Spawned = append(result.Spawned, *rec)
			result.SpawnedCount = len(result.Spawned)
			result.SkippedCount = len(result.Skipped)
			return result, err
		}
		result.Spawned = append(result.Spawned, *rec)
		budget--
	}

	result.SpawnedCount = len(result.Spawned)
	result.SkippedCount = len(result.Skipped)
	return result, nil
}

// spawnOne provisions a worktree and launches a worker for one task. A
// nil record means the task was skipped for the returned reason; any
// panic or partial failure is contained here so one task cannot take down
// the pass.
func (o *Orchestrator) spawnOne(ctx context.Context, task *models.Task) (rec *models.SpawnedAgent, reason string) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			reason = fmt.Sprintf("internal error: %v", r)
			o.debugLog("panic while spawning task %s: %v", task.ID, r)
		}
	}()

	w, err := o.provisioner.Provision(ctx, task)
	if err != nil {
		if errors.Is(err, ErrWorktreeExists) {
			return nil, "active worktree already exists"
		}
		return nil, fmt.Sprintf("provisioning failed: %v", err)
	}

	handle, err := o.spawner.Spawn(ctx, task, w)
	if err != nil {
		// Roll the worktree back so the task is cleanly retryable.
		if relErr := o.provisioner.Release(w.ID); relErr != nil {
			o.debugLog("release worktree %s after spawn failure: %v", w.ID, relErr)
		}
		if delErr := o.provisioner.Destroy(w.ID); delErr != nil {
			o.debugLog("destroy worktree %s after spawn failure: %v", w.ID, delErr)
		}
		return nil, fmt.Sprintf("spawn failed: %v", err)
	}

	return &models.SpawnedAgent{
		SessionID:  handle.SessionID,
		TaskID:     task.ID,
		WorktreeID: w.ID,
		SpawnedAt:  time.Now().UTC(),
	}, ""
}
