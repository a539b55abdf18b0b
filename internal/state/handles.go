package state

import (
	"database/sql"
	"fmt"
	"time"
)

// AgentHandle records a launched worker process so liveness can be checked
// after the orchestrator restarts. The handle is advisory; reconciliation
// never trusts it without probing the process.
type AgentHandle struct {
	// SessionID is the worker's session identifier.
	SessionID string
	// RunID identifies this particular launch of the worker.
	RunID string
	// PID is the operating-system process id of the worker.
	PID int
	// Command is the command line the worker was launched with.
	Command string
	// WorktreePath is the workspace the worker was bound to.
	WorktreePath string
	// StartedAt is when the worker was launched.
	StartedAt time.Time
}

// CreateAgentHandle records a launched worker.
func (db *DB) CreateAgentHandle(h *AgentHandle) error {
	if h.StartedAt.IsZero() {
		h.StartedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT OR REPLACE INTO agent_handles (session_id, run_id, pid, command, worktree_path, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, h.SessionID, h.RunID, h.PID, h.Command, h.WorktreePath, formatTime(h.StartedAt))
	if err != nil {
		return fmt.Errorf("create agent handle: %w", err)
	}
	return nil
}

// GetAgentHandle retrieves a worker handle by session id. Returns (nil, nil)
// if not found.
func (db *DB) GetAgentHandle(sessionID string) (*AgentHandle, error) {
	row := db.QueryRow(`
		SELECT session_id, run_id, pid, command, worktree_path, started_at
		FROM agent_handles WHERE session_id = ?
	`, sessionID)

	var h AgentHandle
	var command, worktreePath sql.NullString
	var startedAt string
	err := row.Scan(&h.SessionID, &h.RunID, &h.PID, &command, &worktreePath, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent handle: %w", err)
	}

	h.Command = command.String
	h.WorktreePath = worktreePath.String
	h.StartedAt, _ = parseTime(startedAt)
	return &h, nil
}

// DeleteAgentHandle removes a worker handle. Deleting a missing handle is
// not an error.
func (db *DB) DeleteAgentHandle(sessionID string) error {
	_, err := db.Exec(`DELETE FROM agent_handles WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete agent handle: %w", err)
	}
	return nil
}
