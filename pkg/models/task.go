package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusOpen indicates the task has not been picked up yet.
	TaskStatusOpen TaskStatus = "open"
	// TaskStatusInProgress indicates a worker is assigned to the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusClosed indicates the task finished successfully.
	TaskStatusClosed TaskStatus = "closed"
	// TaskStatusFailed indicates the task was abandoned as failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusClosed, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusClosed || s == TaskStatusFailed
}

// TaskType categorizes a task.
type TaskType string

const (
	// TaskTypeFeature is new functionality.
	TaskTypeFeature TaskType = "feature"
	// TaskTypeBug is a defect fix.
	TaskTypeBug TaskType = "bug"
	// TaskTypeChore is maintenance work.
	TaskTypeChore TaskType = "chore"
	// TaskTypeEpic is a grouping task that holds children.
	TaskTypeEpic TaskType = "epic"
)

// Task represents a unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ParentID is the ID of the parent task or epic, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority orders tasks within a readiness pass; lower runs first.
	Priority int `json:"priority"`
	// Type categorizes the task.
	Type TaskType `json:"type,omitempty"`
	// AssignedSession is the worker session currently holding the task.
	AssignedSession string `json:"assigned_session,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// ClosedAt is when the task reached a terminal state, if it has.
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	// CloseReason records why the task was closed or failed.
	CloseReason string `json:"close_reason,omitempty"`
}

// DependencyKind describes the relationship between two tasks.
type DependencyKind string

// DependencyBlocks means the task cannot start until the dependency closes.
const DependencyBlocks DependencyKind = "blocks"

// Dependency is a directed edge in the task graph: TaskID waits on DependsOn.
type Dependency struct {
	// TaskID is the dependent task.
	TaskID string `json:"task_id"`
	// DependsOn is the task that must close first.
	DependsOn string `json:"depends_on"`
	// Kind is the dependency relationship.
	Kind DependencyKind `json:"kind"`
}
