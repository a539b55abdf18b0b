package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/foreman/pkg/models"
)

const worktreeColumns = `id, project, branch, path, base_branch, task_id,
	agent_session_id, status, created_at`

// CreateWorktree creates a new worktree record.
func (db *DB) CreateWorktree(w *models.Worktree) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	if w.Status == "" {
		w.Status = models.WorktreeActive
	}
	_, err := db.Exec(`
		INSERT INTO worktrees (id, project, branch, path, base_branch, task_id,
			agent_session_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.Project, w.Branch, w.Path, w.BaseBranch, w.TaskID,
		w.AgentSessionID, string(w.Status), formatTime(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("create worktree: %w", err)
	}
	return nil
}

// GetWorktree retrieves a worktree by ID. Returns (nil, nil) if not found.
func (db *DB) GetWorktree(id string) (*models.Worktree, error) {
	row := db.QueryRow(`SELECT `+worktreeColumns+` FROM worktrees WHERE id = ?`, id)
	w, err := scanWorktree(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	return w, nil
}

// GetActiveWorktreeForTask returns the active worktree for a task, or nil.
func (db *DB) GetActiveWorktreeForTask(taskID string) (*models.Worktree, error) {
	row := db.QueryRow(`
		SELECT `+worktreeColumns+` FROM worktrees
		WHERE task_id = ? AND status = ? LIMIT 1
	`, taskID, string(models.WorktreeActive))
	w, err := scanWorktree(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active worktree for task: %w", err)
	}
	return w, nil
}

// GetWorktreeByBranch returns the worktree checked out on a branch, or nil.
func (db *DB) GetWorktreeByBranch(branch string) (*models.Worktree, error) {
	row := db.QueryRow(`
		SELECT `+worktreeColumns+` FROM worktrees WHERE branch = ? LIMIT 1
	`, branch)
	w, err := scanWorktree(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get worktree by branch: %w", err)
	}
	return w, nil
}

// ListWorktrees returns all worktree records ordered by creation time.
func (db *DB) ListWorktrees() ([]*models.Worktree, error) {
	rows, err := db.Query(`
		SELECT ` + worktreeColumns + ` FROM worktrees ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	defer rows.Close()

	var worktrees []*models.Worktree
	for rows.Next() {
		w, err := scanWorktree(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan worktree: %w", err)
		}
		worktrees = append(worktrees, w)
	}
	return worktrees, rows.Err()
}

// ClaimWorktree records the worker session that owns the worktree.
func (db *DB) ClaimWorktree(id, agentSessionID string) error {
	_, err := db.Exec(`
		UPDATE worktrees SET agent_session_id = ? WHERE id = ?
	`, agentSessionID, id)
	if err != nil {
		return fmt.Errorf("claim worktree: %w", err)
	}
	return nil
}

// ReleaseWorktree clears ownership and marks the worktree released without
// deleting the record.
func (db *DB) ReleaseWorktree(id string) error {
	_, err := db.Exec(`
		UPDATE worktrees SET agent_session_id = '', status = ? WHERE id = ?
	`, string(models.WorktreeReleased), id)
	if err != nil {
		return fmt.Errorf("release worktree: %w", err)
	}
	return nil
}

// DeleteWorktree removes the worktree record. Deleting a missing record is
// not an error.
func (db *DB) DeleteWorktree(id string) error {
	_, err := db.Exec(`DELETE FROM worktrees WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete worktree: %w", err)
	}
	return nil
}

func scanWorktree(scan func(dest ...any) error) (*models.Worktree, error) {
	var w models.Worktree
	var taskID, agentSessionID sql.NullString
	var status, createdAt string

	err := scan(&w.ID, &w.Project, &w.Branch, &w.Path, &w.BaseBranch,
		&taskID, &agentSessionID, &status, &createdAt)
	if err != nil {
		return nil, err
	}

	w.TaskID = taskID.String
	w.AgentSessionID = agentSessionID.String
	w.Status = models.WorktreeStatus(status)
	w.CreatedAt, _ = parseTime(createdAt)
	return &w, nil
}
