package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// MergeFailure records why one reviewed branch could not be merged this
// call. Failures are call-scoped; the record stays in the reviewed list
// and is retried on the next call.
type MergeFailure struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	Branch    string `json:"branch_name"`
	Reason    string `json:"reason"`
}

// CleanupResult reports one cleanup pass over the reviewed workers.
type CleanupResult struct {
	Merged []models.ReviewedAgent `json:"merged"`
	Failed []MergeFailure         `json:"failed"`
}

// CleanupReviewedWorktrees merges each reviewed branch into the base
// branch and removes its worktree. Records are processed and persisted
// independently, so one conflict never blocks the rest of the batch: a
// conflicted merge is aborted, reported once in Failed, and the record
// stays reviewed for a later attempt. With mergeToBase false the branch
// is left alone; with deleteWorktrees false the checkout survives the
// merge.
func (o *Orchestrator) CleanupReviewedWorktrees(ctx context.Context, parentSessionID string, mergeToBase, deleteWorktrees bool) (*CleanupResult, error) {
	if parentSessionID == "" {
		return nil, fmt.Errorf("parent session id is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st, doc, err := loadAgentState(o.docs, parentSessionID)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{}
	if !mergeToBase && !deleteWorktrees {
		return result, nil
	}

	reviewed := append([]models.ReviewedAgent(nil), st.Reviewed...)
	for _, rec := range reviewed {
		if failure := o.cleanupOne(ctx, rec, mergeToBase, deleteWorktrees); failure != nil {
			result.Failed = append(result.Failed, *failure)
			continue
		}

		st.RemoveReviewed(rec.SessionID)
		if err := saveAgentState(o.docs, doc, st); err != nil {
			// The merge happened; without the write the record would be
			// merged again next call, so stop the pass here.
			result.Merged = append(result.Merged, rec)
			return result, err
		}
		result.Merged = append(result.Merged, rec)
	}

	return result, nil
}

// cleanupOne merges and removes one reviewed branch. A non-nil return
// keeps the record in the reviewed list. Panics are contained so one bad
// record cannot abort the batch.
func (o *Orchestrator) cleanupOne(ctx context.Context, rec models.ReviewedAgent, mergeToBase, deleteWorktrees bool) (failure *MergeFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &MergeFailure{
				SessionID: rec.SessionID,
				TaskID:    rec.TaskID,
				Branch:    rec.Branch,
				Reason:    fmt.Sprintf("internal error: %v", r),
			}
			o.debugLog("panic while cleaning up %s: %v", rec.Branch, r)
		}
	}()

	fail := func(format string, args ...any) *MergeFailure {
		return &MergeFailure{
			SessionID: rec.SessionID,
			TaskID:    rec.TaskID,
			Branch:    rec.Branch,
			Reason:    fmt.Sprintf(format, args...),
		}
	}

	if mergeToBase {
		if err := o.git.Fetch(o.opts.Remote, o.opts.BaseBranch); err != nil {
			return fail("fetch %s: %v", o.opts.BaseBranch, err)
		}
		if err := o.git.CheckoutBranch(o.opts.BaseBranch); err != nil {
			return fail("checkout %s: %v", o.opts.BaseBranch, err)
		}

		msg := fmt.Sprintf("Merge branch '%s' (task %s)", rec.Branch, rec.TaskID)
		if err := o.git.MergeNoFFMessage(rec.Branch, msg); err != nil {
			conflicted, _ := o.git.ConflictedFiles()
			if abortErr := o.git.MergeAbort(); abortErr != nil {
				o.debugLog("abort merge of %s: %v", rec.Branch, abortErr)
			}
			if len(conflicted) > 0 {
				return fail("merge conflict in %d file(s): %v", len(conflicted), conflicted)
			}
			return fail("merge failed: %v", err)
		}

		if o.opts.Remote != "" {
			// The merge is already committed locally; a failed push is not
			// a reason to re-merge.
			if err := o.git.Push(o.opts.Remote, o.opts.BaseBranch); err != nil {
				o.debugLog("push %s to %s: %v", o.opts.BaseBranch, o.opts.Remote, err)
			}
		}
		o.debugLog("merged %s into %s", rec.Branch, o.opts.BaseBranch)
	}

	if deleteWorktrees {
		if err := o.provisioner.Release(rec.WorktreeID); err != nil {
			o.debugLog("release worktree %s: %v", rec.WorktreeID, err)
		}
		if err := o.provisioner.Destroy(rec.WorktreeID); err != nil {
			return fail("destroy worktree: %v", err)
		}
	}

	return nil
}
