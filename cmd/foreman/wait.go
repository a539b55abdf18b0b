package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	waitTimeout      time.Duration
	waitPollInterval time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait <task-id>",
	Short: "Block until a task reaches a terminal state",
	Long: `Poll the task until it closes, fails, or the timeout elapses.

Exits 0 when the task closed within the window. A timeout or a task that
terminated as failed exits non-zero so scripts can branch on the outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runWait,
}

func init() {
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "Give up after this long (0 uses config)")
	waitCmd.Flags().DurationVar(&waitPollInterval, "poll-interval", 0, "Time between checks (0 uses config)")
}

func runWait(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	timeout := waitTimeout
	if timeout <= 0 {
		timeout = p.cfg.Orchestrator.WaitTimeout
	}
	pollInterval := waitPollInterval
	if pollInterval <= 0 {
		pollInterval = p.cfg.Orchestrator.PollInterval
	}

	res, err := p.orch.WaitForTask(cmd.Context(), args[0], timeout, pollInterval)
	if err != nil {
		return err
	}

	switch {
	case res.Completed:
		fmt.Printf("%s task %s completed after %s\n", color.GreenString("✓"), args[0], formatDuration(res.WaitTime))
		return nil
	case res.TimedOut:
		return fmt.Errorf("timed out after %s waiting for task %s", formatDuration(res.WaitTime), args[0])
	default:
		return fmt.Errorf("task %s terminated without completing", args[0])
	}
}
