package models

import "time"

// SpawnedAgent records a worker that was launched into a worktree.
// It is appended to the orchestration state on successful spawn.
type SpawnedAgent struct {
	// SessionID is the worker's session identifier.
	SessionID string `json:"session_id"`
	// TaskID is the task the worker was spawned for.
	TaskID string `json:"task_id"`
	// WorktreeID is the worktree the worker is bound to.
	WorktreeID string `json:"worktree_id"`
	// SpawnedAt is when the worker was launched.
	SpawnedAt time.Time `json:"spawned_at"`
}

// CompletedAgent records a worker whose task was observed closed.
type CompletedAgent struct {
	SpawnedAgent
	// CompletedAt is when the reconciler observed completion.
	CompletedAt time.Time `json:"completed_at"`
	// ClosedCommit is the head commit of the worker branch at completion,
	// best effort.
	ClosedCommit string `json:"closed_commit,omitempty"`
	// CloseReason is the reason recorded on the task, if any.
	CloseReason string `json:"close_reason,omitempty"`
}

// FailedAgent records a worker classified as failed during reconciliation.
// The underlying task stays open for retry.
type FailedAgent struct {
	SpawnedAgent
	// Reason describes why the worker was classified as failed.
	Reason string `json:"reason"`
	// FailedAt is when the reconciler made the classification.
	FailedAt time.Time `json:"failed_at"`
}

// ReviewedAgent is a completed worker that passed review and is eligible
// for merging. Removed from the state document only on successful merge
// or delete-without-merge.
type ReviewedAgent struct {
	// SessionID is the worker's session identifier.
	SessionID string `json:"session_id"`
	// TaskID is the task the worker completed.
	TaskID string `json:"task_id"`
	// WorktreeID is the worktree holding the worker's branch.
	WorktreeID string `json:"worktree_id"`
	// Branch is the worker branch to merge.
	Branch string `json:"branch_name"`
}

// OrchestrationState is the durable, versioned document tracking every
// worker spawned by one orchestrating session. It is the single source of
// truth for reconciliation; in-memory process handles are never trusted
// across restarts. Callers serialize access per session and persist with
// a single read-modify-write per pass.
type OrchestrationState struct {
	// SessionID is the orchestrating session this document belongs to.
	SessionID string `json:"session_id"`
	// Version increments on every save; used for optimistic locking.
	Version int `json:"version"`
	// Spawned holds workers that were launched and not yet classified.
	Spawned []SpawnedAgent `json:"spawned_agents"`
	// Completed holds workers whose tasks closed.
	Completed []CompletedAgent `json:"completed_agents"`
	// Failed holds workers classified as crashed or lost.
	Failed []FailedAgent `json:"failed_agents"`
	// Reviewed holds completed workers approved for merge.
	Reviewed []ReviewedAgent `json:"reviewed_agents"`
}

// NewOrchestrationState returns an empty state document for a session.
func NewOrchestrationState(sessionID string) *OrchestrationState {
	return &OrchestrationState{SessionID: sessionID}
}

// Clone returns a deep copy of the state document.
func (s *OrchestrationState) Clone() *OrchestrationState {
	c := &OrchestrationState{
		SessionID: s.SessionID,
		Version:   s.Version,
	}
	c.Spawned = append([]SpawnedAgent(nil), s.Spawned...)
	c.Completed = append([]CompletedAgent(nil), s.Completed...)
	c.Failed = append([]FailedAgent(nil), s.Failed...)
	c.Reviewed = append([]ReviewedAgent(nil), s.Reviewed...)
	return c
}

// HasSpawnedForTask reports whether a spawned record exists for the task.
func (s *OrchestrationState) HasSpawnedForTask(taskID string) bool {
	for _, a := range s.Spawned {
		if a.TaskID == taskID {
			return true
		}
	}
	return false
}

// RemoveSpawned deletes the spawned record with the given session id, if
// present, preserving order.
func (s *OrchestrationState) RemoveSpawned(sessionID string) {
	for i, a := range s.Spawned {
		if a.SessionID == sessionID {
			s.Spawned = append(s.Spawned[:i], s.Spawned[i+1:]...)
			return
		}
	}
}

// RemoveReviewed deletes the reviewed record with the given session id, if
// present, preserving order.
func (s *OrchestrationState) RemoveReviewed(sessionID string) {
	for i, a := range s.Reviewed {
		if a.SessionID == sessionID {
			s.Reviewed = append(s.Reviewed[:i], s.Reviewed[i+1:]...)
			return
		}
	}
}

// FindCompleted returns the completed record for the task, or nil.
func (s *OrchestrationState) FindCompleted(taskID string) *CompletedAgent {
	for i := range s.Completed {
		if s.Completed[i].TaskID == taskID {
			return &s.Completed[i]
		}
	}
	return nil
}

// AllDone reports whether no spawned workers remain unclassified.
func (s *OrchestrationState) AllDone() bool {
	return len(s.Spawned) == 0
}
