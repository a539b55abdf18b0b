package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// PollResult reports one reconciliation pass over the spawned workers of a
// session.
type PollResult struct {
	NewlyCompleted []models.CompletedAgent `json:"newly_completed"`
	NewlyFailed    []models.FailedAgent    `json:"newly_failed"`
	StillRunning   []models.SpawnedAgent   `json:"still_running"`
	AllDone        bool                    `json:"all_done"`
}

// PollAgentStatus classifies every spawned worker of the session from
// durable signals and moves finished ones into the completed or failed
// lists. Classification precedence, per record:
//
//  1. missing session id: failed (corrupted record)
//  2. task closed: completed
//  3. worker process alive: still running
//  4. task still open, worker gone: failed before starting work
//  5. task in progress, worker gone, worktree released: failed after
//     releasing without closing
//  6. task in progress, worker gone, worktree still owned: failed without
//     completing
//
// Crashed tasks are reopened for retry; they are never closed here. The
// state document is written once per pass.
func (o *Orchestrator) PollAgentStatus(ctx context.Context, parentSessionID string) (*PollResult, error) {
	if parentSessionID == "" {
		return nil, fmt.Errorf("parent session id is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st, doc, err := loadAgentState(o.docs, parentSessionID)
	if err != nil {
		return nil, err
	}

	result := &PollResult{}
	now := time.Now().UTC()
	var remaining []models.SpawnedAgent

	for _, a := range st.Spawned {
		switch c := o.classify(a, now); c.kind {
		case classRunning:
			remaining = append(remaining, a)
			result.StillRunning = append(result.StillRunning, a)
		case classCompleted:
			result.NewlyCompleted = append(result.NewlyCompleted, *c.completed)
			st.Completed = append(st.Completed, *c.completed)
		case classFailed:
			result.NewlyFailed = append(result.NewlyFailed, *c.failed)
			st.Failed = append(st.Failed, *c.failed)
		}
	}

	st.Spawned = remaining
	if err := saveAgentState(o.docs, doc, st); err != nil {
		return nil, err
	}

	result.AllDone = st.AllDone()
	return result, nil
}

type classKind int

const (
	classRunning classKind = iota
	classCompleted
	classFailed
)

type classification struct {
	kind      classKind
	completed *models.CompletedAgent
	failed    *models.FailedAgent
}

func failedClass(a models.SpawnedAgent, now time.Time, reason string) classification {
	return classification{
		kind:   classFailed,
		failed: &models.FailedAgent{SpawnedAgent: a, Reason: reason, FailedAt: now},
	}
}

// classify decides one spawned record's fate. Unexpected errors are
// contained here and classify the record as failed rather than aborting
// the pass.
func (o *Orchestrator) classify(a models.SpawnedAgent, now time.Time) classification {
	if a.SessionID == "" {
		return failedClass(a, now, "corrupted record: Missing session_id")
	}

	task, err := o.tasks.GetTask(a.TaskID)
	if err != nil {
		return failedClass(a, now, fmt.Sprintf("task lookup failed: %v", err))
	}
	if task == nil {
		return failedClass(a, now, fmt.Sprintf("task %s not found", a.TaskID))
	}

	if task.Status == models.TaskStatusClosed {
		done := &models.CompletedAgent{
			SpawnedAgent: a,
			CompletedAt:  now,
			CloseReason:  task.CloseReason,
		}
		// Best effort: the branch may already be gone.
		if w, err := o.worktrees.GetWorktree(a.WorktreeID); err == nil && w != nil {
			if commit, err := o.git.HeadCommit(w.Branch); err == nil {
				done.ClosedCommit = commit
			}
		}
		return classification{kind: classCompleted, completed: done}
	}

	if h := o.runner.GetRunning(a.SessionID); h != nil {
		return classification{kind: classRunning}
	}

	// The worker is gone with a non-closed task: a crash. Reopen the task
	// so a later pass can retry it; never close it on the worker's behalf.
	switch task.Status {
	case models.TaskStatusOpen:
		return failedClass(a, now, "worker exited before starting work")
	case models.TaskStatusInProgress:
		o.reopenCrashed(task)
		w, err := o.worktrees.GetWorktree(a.WorktreeID)
		if err != nil {
			return failedClass(a, now, fmt.Sprintf("worktree lookup failed: %v", err))
		}
		if w == nil || !w.Owned() {
			return failedClass(a, now, "worker released worktree without closing task")
		}
		return failedClass(a, now, "worker exited without completing task")
	default:
		return failedClass(a, now, fmt.Sprintf("task marked %s", task.Status))
	}
}

// reopenCrashed resets a crashed in-progress task to open and clears the
// worker assignment. Failure here is logged, not fatal: the failed entry
// still records the crash.
func (o *Orchestrator) reopenCrashed(task *models.Task) {
	task.Status = models.TaskStatusOpen
	task.AssignedSession = ""
	if err := o.tasks.UpdateTask(task); err != nil {
		o.debugLog("reopen crashed task %s: %v", task.ID, err)
	}
}
