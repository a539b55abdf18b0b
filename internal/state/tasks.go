package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// ErrOpenChildren indicates a close was attempted on a task that still has
// open children and force was not set.
var ErrOpenChildren = errors.New("task has open children")

const taskColumns = `id, parent_id, title, description, status, priority, type,
	assigned_session, created_at, closed_at, close_reason`

// CreateTask creates a new task record.
func (db *DB) CreateTask(t *models.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusOpen
	}
	var closedAt any
	if t.ClosedAt != nil {
		closedAt = formatTime(*t.ClosedAt)
	}
	_, err := db.Exec(`
		INSERT INTO tasks (id, parent_id, title, description, status, priority, type,
			assigned_session, created_at, closed_at, close_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ParentID, t.Title, t.Description, string(t.Status), t.Priority,
		string(t.Type), t.AssignedSession, formatTime(t.CreatedAt), closedAt, t.CloseReason)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns (nil, nil) if not found.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask updates all mutable fields of a task.
func (db *DB) UpdateTask(t *models.Task) error {
	var closedAt any
	if t.ClosedAt != nil {
		closedAt = formatTime(*t.ClosedAt)
	}
	_, err := db.Exec(`
		UPDATE tasks SET parent_id = ?, title = ?, description = ?, status = ?,
			priority = ?, type = ?, assigned_session = ?, closed_at = ?, close_reason = ?
		WHERE id = ?
	`, t.ParentID, t.Title, t.Description, string(t.Status), t.Priority,
		string(t.Type), t.AssignedSession, closedAt, t.CloseReason, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// SetTaskStatus transitions a task to the given status. Terminal statuses
// record the close time and reason.
func (db *DB) SetTaskStatus(id string, status models.TaskStatus, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid task status %q", status)
	}
	var closedAt any
	if status.Terminal() {
		closedAt = formatTime(time.Now())
	}
	_, err := db.Exec(`
		UPDATE tasks SET status = ?, closed_at = ?, close_reason = ? WHERE id = ?
	`, string(status), closedAt, reason, id)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// CloseTask closes a task. A task with open children cannot be closed
// unless force is set.
func (db *DB) CloseTask(id string, force bool) error {
	if !force {
		children, err := db.ListChildren(id)
		if err != nil {
			return err
		}
		for _, c := range children {
			if !c.Status.Terminal() {
				return fmt.Errorf("close task %s: %w", id, ErrOpenChildren)
			}
		}
	}
	return db.SetTaskStatus(id, models.TaskStatusClosed, "")
}

// ListChildren returns the direct children of a task ordered by creation time.
func (db *DB) ListChildren(parentID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? ORDER BY created_at ASC, id ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListRoots returns tasks without a parent ordered by creation time.
func (db *DB) ListRoots() ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT ` + taskColumns + ` FROM tasks WHERE parent_id = '' OR parent_id IS NULL
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// CreateDependency records a dependency edge between two tasks.
func (db *DB) CreateDependency(d *models.Dependency) error {
	kind := d.Kind
	if kind == "" {
		kind = models.DependencyBlocks
	}
	_, err := db.Exec(`
		INSERT OR IGNORE INTO task_deps (task_id, depends_on, kind) VALUES (?, ?, ?)
	`, d.TaskID, d.DependsOn, string(kind))
	if err != nil {
		return fmt.Errorf("create dependency: %w", err)
	}
	return nil
}

// ListDependencies returns the dependency edges originating at a task.
func (db *DB) ListDependencies(taskID string) ([]models.Dependency, error) {
	rows, err := db.Query(`
		SELECT task_id, depends_on, kind FROM task_deps WHERE task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []models.Dependency
	for rows.Next() {
		var d models.Dependency
		var kind string
		if err := rows.Scan(&d.TaskID, &d.DependsOn, &kind); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		d.Kind = models.DependencyKind(kind)
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// scanTask reads a task row through the given scan function.
func scanTask(scan func(dest ...any) error) (*models.Task, error) {
	var t models.Task
	var parentID, description, taskType, assigned, reason sql.NullString
	var createdAt string
	var closedAt sql.NullString
	var status string

	err := scan(&t.ID, &parentID, &t.Title, &description, &status, &t.Priority,
		&taskType, &assigned, &createdAt, &closedAt, &reason)
	if err != nil {
		return nil, err
	}

	t.ParentID = parentID.String
	t.Description = description.String
	t.Status = models.TaskStatus(status)
	t.Type = models.TaskType(taskType.String)
	t.AssignedSession = assigned.String
	t.CreatedAt, _ = parseTime(createdAt)
	t.ClosedAt = parseNullableTime(closedAt)
	t.CloseReason = reason.String
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
