package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/foreman/internal/runner"
	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// AgentSpawner launches a worker for a task inside its worktree and
// claims the worktree for the worker's session.
type AgentSpawner struct {
	runner    runner.Runner
	worktrees state.WorktreeStore
	debugLog  func(format string, args ...any)
}

// NewAgentSpawner creates a spawner.
func NewAgentSpawner(r runner.Runner, worktrees state.WorktreeStore) *AgentSpawner {
	return &AgentSpawner{
		runner:    r,
		worktrees: worktrees,
		debugLog:  func(format string, args ...any) {},
	}
}

// SetDebugLog installs a debug logging function.
func (s *AgentSpawner) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		s.debugLog = fn
	}
}

// Spawn launches a worker for the task in the given worktree. On success
// the worktree is claimed by the worker's session. The task status is left
// untouched: the worker marks it in_progress when it actually starts.
func (s *AgentSpawner) Spawn(ctx context.Context, task *models.Task, w *models.Worktree) (*runner.Handle, error) {
	handle, err := s.runner.Spawn(ctx, runner.SpawnRequest{
		TaskID:       task.ID,
		WorktreePath: w.Path,
		Prompt:       buildPrompt(task, w),
	})
	if err != nil {
		return nil, fmt.Errorf("spawn worker for task %s: %w", task.ID, err)
	}

	if err := s.worktrees.ClaimWorktree(w.ID, handle.SessionID); err != nil {
		return nil, fmt.Errorf("claim worktree %s for session %s: %w", w.ID, handle.SessionID, err)
	}

	s.debugLog("spawned worker %s (pid %d) for task %s", handle.SessionID, handle.PID, task.ID)
	return handle, nil
}

// buildPrompt renders the worker instruction for a task.
func buildPrompt(task *models.Task, w *models.Worktree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are working on task %s: %s\n\n", task.ID, task.Title)
	if task.Description != "" {
		b.WriteString(task.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Work only inside this worktree (branch %s). Commit your changes.\n", w.Branch)
	fmt.Fprintf(&b, "When the task is done, run: foreman tasks close %s --reason \"<summary>\"\n", task.ID)
	fmt.Fprintf(&b, "Then release your workspace: foreman worktrees release %s\n", w.ID)
	return b.String()
}
