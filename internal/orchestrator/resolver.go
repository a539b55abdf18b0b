package orchestrator

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// TaskGraphResolver computes which descendants of a parent task are ready
// for a worker: open, not blocked by any non-closed dependency, and with
// an unblocked ancestor chain up to the parent.
type TaskGraphResolver struct {
	tasks    state.TaskStore
	debugLog func(format string, args ...any)
}

// NewTaskGraphResolver creates a resolver over the given task store.
func NewTaskGraphResolver(tasks state.TaskStore) *TaskGraphResolver {
	return &TaskGraphResolver{
		tasks:    tasks,
		debugLog: func(format string, args ...any) {},
	}
}

// SetDebugLog installs a debug logging function.
func (r *TaskGraphResolver) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		r.debugLog = fn
	}
}

// ReadyDescendants returns the descendants of parentID that are ready to
// be worked on, ordered parents before children, then by ascending
// priority, then by creation time.
func (r *TaskGraphResolver) ReadyDescendants(parentID string) ([]*models.Task, error) {
	parent, err := r.tasks.GetTask(parentID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent task: %w", err)
	}
	if parent == nil {
		return nil, fmt.Errorf("unknown parent task %s", parentID)
	}

	var ready []*models.Task
	if err := r.walk(parent, false, &ready); err != nil {
		return nil, err
	}
	return ready, nil
}

// walk visits the subtree under node in preorder with siblings sorted by
// priority then creation time. ancestorBlocked propagates blockedness down
// the chain: a blocked ancestor shadows its entire subtree.
func (r *TaskGraphResolver) walk(node *models.Task, ancestorBlocked bool, ready *[]*models.Task) error {
	children, err := r.tasks.ListChildren(node.ID)
	if err != nil {
		return fmt.Errorf("list children of %s: %w", node.ID, err)
	}
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].Priority != children[j].Priority {
			return children[i].Priority < children[j].Priority
		}
		return children[i].CreatedAt.Before(children[j].CreatedAt)
	})

	for _, child := range children {
		blocked, err := r.blocked(child)
		if err != nil {
			return err
		}
		if child.Status == models.TaskStatusOpen && !blocked && !ancestorBlocked {
			*ready = append(*ready, child)
		}
		if err := r.walk(child, ancestorBlocked || blocked, ready); err != nil {
			return err
		}
	}
	return nil
}

// blocked reports whether the task has a blocking dependency on any task
// that is not closed. Dependencies may point anywhere in the graph, not
// just inside the orchestrated subtree.
func (r *TaskGraphResolver) blocked(task *models.Task) (bool, error) {
	deps, err := r.tasks.ListDependencies(task.ID)
	if err != nil {
		return false, fmt.Errorf("list dependencies of %s: %w", task.ID, err)
	}
	for _, dep := range deps {
		if dep.Kind != models.DependencyBlocks {
			continue
		}
		target, err := r.tasks.GetTask(dep.DependsOn)
		if err != nil {
			return false, fmt.Errorf("resolve dependency %s of %s: %w", dep.DependsOn, task.ID, err)
		}
		if target == nil {
			// A dangling edge blocks: we cannot prove it was satisfied.
			r.debugLog("task %s blocked by missing dependency %s", task.ID, dep.DependsOn)
			return true, nil
		}
		if target.Status != models.TaskStatusClosed {
			return true, nil
		}
	}
	return false, nil
}
