package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/orchestrator"
)

var (
	orchestrateSession       string
	orchestrateMaxConcurrent int
	orchestrateMode          string
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate <parent-task-id>",
	Short: "Spawn workers for ready descendants of a task",
	Long: `Resolve the ready descendants of the parent task and spawn a worker
per task, each in its own git worktree and branch.

A task is ready when it is open, has no unresolved blocking dependency,
and its whole ancestor chain up to the parent is unblocked. Every ready
task is either spawned or reported skipped with a reason; skipped tasks
stay ready for the next pass.

Use --mode plan to see what would be spawned without touching anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrchestrate,
}

func init() {
	orchestrateCmd.Flags().StringVar(&orchestrateSession, "session", "", "Orchestrating session id (required)")
	orchestrateCmd.Flags().IntVar(&orchestrateMaxConcurrent, "max-concurrent", 0, "Concurrent worker cap (0 uses config)")
	orchestrateCmd.Flags().StringVar(&orchestrateMode, "mode", "", "Orchestration mode: worktree or plan (default from config)")
	orchestrateCmd.MarkFlagRequired("session")
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	mode := orchestrateMode
	if mode == "" {
		mode = p.cfg.Orchestrator.Mode
	}

	res, err := p.orch.OrchestrateReadyTasks(cmd.Context(), args[0], orchestrateSession,
		orchestrateMaxConcurrent, orchestrator.Mode(mode))
	if err != nil {
		return err
	}

	if res.SpawnedCount == 0 && res.SkippedCount == 0 {
		fmt.Println("No ready tasks.")
		return nil
	}

	if res.SpawnedCount > 0 {
		fmt.Printf("%s Spawned %d worker(s):\n", color.GreenString("✓"), res.SpawnedCount)
		for _, a := range res.Spawned {
			fmt.Printf("  %s  task %s  worktree %s\n", a.SessionID, a.TaskID, a.WorktreeID)
		}
	}
	if res.SkippedCount > 0 {
		fmt.Printf("%s Skipped %d task(s):\n", color.YellowString("⚠"), res.SkippedCount)
		for _, s := range res.Skipped {
			fmt.Printf("  %s: %s\n", s.TaskID, s.Reason)
		}
	}

	return nil
}
