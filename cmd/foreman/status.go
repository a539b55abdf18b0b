package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/tui"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var (
	statusSession string
	statusWatch   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show orchestration status for a session",
	Long: `Display the orchestration state of a session: running workers,
completed and reviewed tasks, and failures.

Each refresh reconciles worker status first, so crashed workers show up
as failed rather than hanging forever. With --watch, a live view refreshes
until interrupted.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusSession, "session", "", "Orchestrating session id (required)")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Refresh continuously in a live view")
	statusCmd.MarkFlagRequired("session")
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	fetch := func() tui.Snapshot {
		snap := tui.Snapshot{SessionID: statusSession, Tasks: map[string]*models.Task{}}
		if _, err := p.orch.PollAgentStatus(cmd.Context(), statusSession); err != nil {
			snap.Err = err
			return snap
		}
		st, err := p.orch.AgentState(statusSession)
		if err != nil {
			snap.Err = err
			return snap
		}
		snap.State = st
		for _, a := range st.Spawned {
			if task, err := p.db.GetTask(a.TaskID); err == nil && task != nil {
				snap.Tasks[a.TaskID] = task
			}
		}
		return snap
	}

	if statusWatch {
		interval := p.cfg.Orchestrator.PollInterval
		if interval <= 0 {
			interval = 2 * time.Second
		}
		program := tea.NewProgram(tui.NewWatch(fetch, interval))
		_, err := program.Run()
		return err
	}

	snap := fetch()
	if snap.Err != nil {
		return snap.Err
	}
	printStatusSnapshot(snap)
	return nil
}

func printStatusSnapshot(snap tui.Snapshot) {
	st := snap.State

	fmt.Printf("Session: %s\n\n", snap.SessionID)

	fmt.Printf("Running (%d):\n", len(st.Spawned))
	if len(st.Spawned) == 0 {
		fmt.Println("  none")
	}
	for _, a := range st.Spawned {
		title := ""
		if t, ok := snap.Tasks[a.TaskID]; ok {
			title = fmt.Sprintf(" %q", t.Title)
		}
		fmt.Printf("  %s %s%s (up %s)\n", color.YellowString("…"), a.TaskID, title, formatDuration(time.Since(a.SpawnedAt)))
	}

	fmt.Printf("\nCompleted (%d):\n", len(st.Completed))
	for _, a := range st.Completed {
		line := fmt.Sprintf("  %s %s", color.GreenString("✓"), a.TaskID)
		if a.ClosedCommit != "" {
			line += " at " + shortCommit(a.ClosedCommit)
		}
		fmt.Println(line)
	}

	fmt.Printf("\nReviewed (%d):\n", len(st.Reviewed))
	for _, a := range st.Reviewed {
		fmt.Printf("  %s %s (%s)\n", color.GreenString("▸"), a.TaskID, a.Branch)
	}

	fmt.Printf("\nFailed (%d):\n", len(st.Failed))
	for _, a := range st.Failed {
		fmt.Printf("  %s %s: %s\n", color.RedString("✗"), a.TaskID, a.Reason)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
