package models

import "time"

// WorktreeStatus represents the lifecycle state of a worktree.
type WorktreeStatus string

const (
	// WorktreeActive indicates the worktree exists and may be claimed by a worker.
	WorktreeActive WorktreeStatus = "active"
	// WorktreeReleased indicates the owning worker has finished with the
	// worktree; the checkout still exists until it is destroyed.
	WorktreeReleased WorktreeStatus = "released"
)

// Worktree is an isolated, branch-specific checkout used as a worker's
// private workspace. At most one active worktree may exist per task.
type Worktree struct {
	// ID is the unique identifier for this worktree.
	ID string `json:"id"`
	// Project is the repository root this worktree belongs to.
	Project string `json:"project"`
	// Branch is the branch checked out in this worktree.
	Branch string `json:"branch"`
	// Path is the absolute filesystem path of the checkout.
	Path string `json:"path"`
	// BaseBranch is the branch the worktree branch was created from.
	BaseBranch string `json:"base_branch"`
	// TaskID is the task this worktree was provisioned for, if any.
	TaskID string `json:"task_id,omitempty"`
	// AgentSessionID is the worker session that currently owns the
	// worktree. Cleared when the worker releases it.
	AgentSessionID string `json:"agent_session_id,omitempty"`
	// Status is the lifecycle state.
	Status WorktreeStatus `json:"status"`
	// CreatedAt is when the worktree was provisioned.
	CreatedAt time.Time `json:"created_at"`
}

// Active returns true if the worktree has not been released.
func (w *Worktree) Active() bool {
	return w.Status == WorktreeActive
}

// Owned returns true if a worker session currently claims the worktree.
func (w *Worktree) Owned() bool {
	return w.AgentSessionID != ""
}
