// Package state provides SQLite-based persistence for Foreman.
package state

import (
	"io"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// TaskStore handles task and dependency persistence.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(t *models.Task) error
	SetTaskStatus(id string, status models.TaskStatus, reason string) error
	CloseTask(id string, force bool) error
	ListChildren(parentID string) ([]*models.Task, error)
	ListRoots() ([]*models.Task, error)
	CreateDependency(d *models.Dependency) error
	ListDependencies(taskID string) ([]models.Dependency, error)
}

// WorktreeStore handles worktree record persistence.
type WorktreeStore interface {
	CreateWorktree(w *models.Worktree) error
	GetWorktree(id string) (*models.Worktree, error)
	GetActiveWorktreeForTask(taskID string) (*models.Worktree, error)
	GetWorktreeByBranch(branch string) (*models.Worktree, error)
	ListWorktrees() ([]*models.Worktree, error)
	ClaimWorktree(id, agentSessionID string) error
	ReleaseWorktree(id string) error
	DeleteWorktree(id string) error
}

// DocumentStore handles versioned per-session variable documents.
type DocumentStore interface {
	GetDocument(sessionID, key string) (*Document, error)
	SaveDocument(doc *Document) error
}

// HandleStore handles spawned-agent process handles.
type HandleStore interface {
	CreateAgentHandle(h *AgentHandle) error
	GetAgentHandle(sessionID string) (*AgentHandle, error)
	DeleteAgentHandle(sessionID string) error
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the complete interface for state persistence. It composes
// focused sub-interfaces so consumers can depend on just what they use.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	WorktreeStore
	DocumentStore
	HandleStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ TaskStore     = (*DB)(nil)
	_ WorktreeStore = (*DB)(nil)
	_ DocumentStore = (*DB)(nil)
	_ HandleStore   = (*DB)(nil)
)
