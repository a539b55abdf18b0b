package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cleanupSession string
	cleanupNoMerge bool
	cleanupKeep    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Merge reviewed branches and remove their worktrees",
	Long: `Merge every reviewed worker branch into the base branch (--no-ff) and
remove its worktree and branch.

Records are processed independently: a merge conflict aborts that merge,
reports the conflict, and leaves the record reviewed for a later attempt
while the rest of the batch proceeds.

Flags:
  --no-merge   remove worktrees without merging (discard reviewed work)
  --keep       merge but keep worktrees and branches on disk`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupSession, "session", "", "Orchestrating session id (required)")
	cleanupCmd.Flags().BoolVar(&cleanupNoMerge, "no-merge", false, "Remove worktrees without merging")
	cleanupCmd.Flags().BoolVar(&cleanupKeep, "keep", false, "Keep worktrees and branches after merging")
	cleanupCmd.MarkFlagRequired("session")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.orch.CleanupReviewedWorktrees(cmd.Context(), cleanupSession, !cleanupNoMerge, !cleanupKeep)
	if err != nil {
		return err
	}

	if len(res.Merged) == 0 && len(res.Failed) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	for _, a := range res.Merged {
		verb := "merged"
		if cleanupNoMerge {
			verb = "discarded"
		}
		fmt.Printf("%s %s branch %s (task %s)\n", color.GreenString("✓"), verb, a.Branch, a.TaskID)
	}
	for _, f := range res.Failed {
		fmt.Printf("%s branch %s (task %s): %s\n", color.RedString("✗"), f.Branch, f.TaskID, f.Reason)
	}

	if len(res.Failed) > 0 {
		return fmt.Errorf("%d branch(es) could not be cleaned up; they remain reviewed", len(res.Failed))
	}
	return nil
}
