package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/approvals"
	"github.com/ShayCichocki/foreman/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review completed worker branches",
	Long: `Decide what happens to completed work before it merges.

Approving a task promotes its worker branch into the reviewed list, where
'foreman cleanup' merges it. Rejecting moves the worker to failed and
keeps its worktree for inspection.

'review auto' asks an Anthropic model to judge each completed branch
diff. 'review process' consumes approve/reject files dropped under
.foreman/approvals by humans or tooling.`,
}

var (
	reviewSession      string
	reviewRejectReason string
)

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <task-id>",
	Short: "Approve a completed task for merging",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewApprove,
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <task-id>",
	Short: "Reject a completed task",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewReject,
}

var reviewAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Judge every completed branch with an Anthropic model",
	RunE:  runReviewAuto,
}

var reviewProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Apply decisions dropped under .foreman/approvals",
	RunE:  runReviewProcess,
}

func init() {
	reviewCmd.PersistentFlags().StringVar(&reviewSession, "session", "", "Orchestrating session id (required)")
	reviewCmd.MarkPersistentFlagRequired("session")
	reviewRejectCmd.Flags().StringVar(&reviewRejectReason, "reason", "", "Why the work was rejected")

	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
	reviewCmd.AddCommand(reviewAutoCmd)
	reviewCmd.AddCommand(reviewProcessCmd)
}

func runReviewApprove(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	rec, err := p.orch.ApproveCompleted(reviewSession, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s approved task %s (branch %s)\n", color.GreenString("✓"), rec.TaskID, rec.Branch)
	return nil
}

func runReviewReject(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.orch.RejectCompleted(reviewSession, args[0], reviewRejectReason); err != nil {
		return err
	}
	fmt.Printf("%s rejected task %s\n", color.RedString("✗"), args[0])
	return nil
}

func runReviewAuto(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	client, err := review.NewClient(review.ClientConfig{
		Model:  anthropic.Model(p.cfg.Review.Model),
		APIKey: p.cfg.Anthropic.APIKey,
	})
	if err != nil {
		return err
	}
	reviewer := review.NewReviewer(client, p.git)

	st, err := p.orch.AgentState(reviewSession)
	if err != nil {
		return err
	}
	if len(st.Completed) == 0 {
		fmt.Println("No completed tasks awaiting review.")
		return nil
	}

	reviewed := make(map[string]bool, len(st.Reviewed))
	for _, r := range st.Reviewed {
		reviewed[r.TaskID] = true
	}

	for _, done := range st.Completed {
		if reviewed[done.TaskID] {
			continue
		}
		task, err := p.db.GetTask(done.TaskID)
		if err != nil || task == nil {
			fmt.Printf("%s task %s: record missing, skipping\n", color.YellowString("⚠"), done.TaskID)
			continue
		}
		w, err := p.db.GetWorktree(done.WorktreeID)
		if err != nil || w == nil {
			fmt.Printf("%s task %s: worktree missing, skipping\n", color.YellowString("⚠"), done.TaskID)
			continue
		}

		res, err := reviewer.ReviewBranch(cmd.Context(), task, p.cfg.Git.BaseBranch, w.Branch)
		if err != nil {
			return fmt.Errorf("review task %s: %w", done.TaskID, err)
		}

		if res.Approved {
			if _, err := p.orch.ApproveCompleted(reviewSession, done.TaskID); err != nil {
				return err
			}
			fmt.Printf("%s task %s approved\n", color.GreenString("✓"), done.TaskID)
		} else {
			if err := p.orch.RejectCompleted(reviewSession, done.TaskID, res.Feedback); err != nil {
				return err
			}
			fmt.Printf("%s task %s rejected:\n%s\n", color.RedString("✗"), done.TaskID, res.Feedback)
		}
	}

	in, out := client.Tracker().Total()
	fmt.Printf("\nReview used %d input / %d output tokens over %d call(s).\n", in, out, client.Tracker().Calls())
	return nil
}

func runReviewProcess(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	queue, err := approvals.NewQueue(p.root)
	if err != nil {
		return err
	}
	defer queue.Close()

	decisions, err := queue.Scan()
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No pending decisions.")
		return nil
	}

	for _, d := range decisions {
		if d.Approve {
			if _, err := p.orch.ApproveCompleted(reviewSession, d.TaskID); err != nil {
				fmt.Printf("%s task %s: %v\n", color.YellowString("⚠"), d.TaskID, err)
				continue
			}
			fmt.Printf("%s task %s approved\n", color.GreenString("✓"), d.TaskID)
		} else {
			if err := p.orch.RejectCompleted(reviewSession, d.TaskID, d.Reason); err != nil {
				fmt.Printf("%s task %s: %v\n", color.YellowString("⚠"), d.TaskID, err)
				continue
			}
			fmt.Printf("%s task %s rejected\n", color.RedString("✗"), d.TaskID)
		}
	}
	return nil
}
