package orchestrator

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// ApproveCompleted promotes the completed worker for taskID into the
// reviewed list, making its branch eligible for merge.
func (o *Orchestrator) ApproveCompleted(parentSessionID, taskID string) (*models.ReviewedAgent, error) {
	if parentSessionID == "" {
		return nil, fmt.Errorf("parent session id is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st, doc, err := loadAgentState(o.docs, parentSessionID)
	if err != nil {
		return nil, err
	}

	done := st.FindCompleted(taskID)
	if done == nil {
		return nil, fmt.Errorf("no completed worker for task %s", taskID)
	}
	for _, r := range st.Reviewed {
		if r.TaskID == taskID {
			return nil, fmt.Errorf("task %s is already reviewed", taskID)
		}
	}

	branch := ""
	if w, err := o.worktrees.GetWorktree(done.WorktreeID); err == nil && w != nil {
		branch = w.Branch
	}
	if branch == "" {
		branch = o.provisioner.BranchName(taskID)
	}

	rec := models.ReviewedAgent{
		SessionID:  done.SessionID,
		TaskID:     done.TaskID,
		WorktreeID: done.WorktreeID,
		Branch:     branch,
	}
	st.Reviewed = append(st.Reviewed, rec)
	if err := saveAgentState(o.docs, doc, st); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RejectCompleted moves the completed worker for taskID into the failed
// list with the given reason. The worktree and branch are kept for
// inspection; cleanup or a retry pass deals with them later.
func (o *Orchestrator) RejectCompleted(parentSessionID, taskID, reason string) error {
	if parentSessionID == "" {
		return fmt.Errorf("parent session id is required")
	}
	if reason == "" {
		reason = "rejected in review"
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st, doc, err := loadAgentState(o.docs, parentSessionID)
	if err != nil {
		return err
	}

	done := st.FindCompleted(taskID)
	if done == nil {
		return fmt.Errorf("no completed worker for task %s", taskID)
	}

	st.Failed = append(st.Failed, models.FailedAgent{
		SpawnedAgent: done.SpawnedAgent,
		Reason:       fmt.Sprintf("review rejected: %s", reason),
		FailedAt:     time.Now().UTC(),
	})
	removeCompleted(st, taskID)
	return saveAgentState(o.docs, doc, st)
}

// removeCompleted deletes the completed record for taskID, preserving
// order.
func removeCompleted(st *models.OrchestrationState, taskID string) {
	for i, c := range st.Completed {
		if c.TaskID == taskID {
			st.Completed = append(st.Completed[:i], st.Completed[i+1:]...)
			return
		}
	}
}
