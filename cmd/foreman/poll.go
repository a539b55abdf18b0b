package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pollSession string

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Reconcile worker status for a session",
	Long: `Classify every spawned worker of the session from durable signals:
task status, process liveness, and worktree ownership. Workers whose
tasks closed move to completed; crashed workers move to failed and their
tasks reopen for retry.`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().StringVar(&pollSession, "session", "", "Orchestrating session id (required)")
	pollCmd.MarkFlagRequired("session")
}

func runPoll(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.orch.PollAgentStatus(cmd.Context(), pollSession)
	if err != nil {
		return err
	}

	for _, a := range res.NewlyCompleted {
		line := fmt.Sprintf("%s task %s completed", color.GreenString("✓"), a.TaskID)
		if a.ClosedCommit != "" {
			line += " at " + shortCommit(a.ClosedCommit)
		}
		fmt.Println(line)
	}
	for _, a := range res.NewlyFailed {
		fmt.Printf("%s task %s failed: %s\n", color.RedString("✗"), a.TaskID, a.Reason)
	}
	for _, a := range res.StillRunning {
		fmt.Printf("%s task %s still running (worker %s)\n", color.YellowString("…"), a.TaskID, a.SessionID)
	}

	if res.AllDone {
		fmt.Printf("\n%s All workers accounted for.\n", color.GreenString("✓"))
	} else {
		fmt.Printf("\n%d worker(s) still running.\n", len(res.StillRunning))
	}

	return nil
}

// shortCommit truncates a commit hash for display.
func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
