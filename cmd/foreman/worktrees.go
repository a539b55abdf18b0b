package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var worktreesCmd = &cobra.Command{
	Use:   "worktrees",
	Short: "Manage task worktrees",
}

var worktreesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List worktree records",
	RunE:  runWorktreesList,
}

var worktreesReleaseCmd = &cobra.Command{
	Use:   "release <worktree-id>",
	Short: "Release worker ownership of a worktree",
	Long: `Clear worker ownership and mark the worktree released. The checkout
stays on disk for review and merge. Workers run this when they finish.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorktreesRelease,
}

var worktreesDestroyCmd = &cobra.Command{
	Use:   "destroy <worktree-id>",
	Short: "Remove a worktree, its branch, and its record",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreesDestroy,
}

func init() {
	worktreesCmd.AddCommand(worktreesListCmd)
	worktreesCmd.AddCommand(worktreesReleaseCmd)
	worktreesCmd.AddCommand(worktreesDestroyCmd)
}

func runWorktreesList(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	worktrees, err := p.db.ListWorktrees()
	if err != nil {
		return fmt.Errorf("list worktrees: %w", err)
	}
	if len(worktrees) == 0 {
		fmt.Println("No worktrees.")
		return nil
	}

	for _, w := range worktrees {
		owner := "unclaimed"
		if w.AgentSessionID != "" {
			owner = "owned by " + w.AgentSessionID
		}
		glyph := color.GreenString("●")
		if !w.Active() {
			glyph = color.WhiteString("○")
		}
		fmt.Printf("%s %s  task %s  branch %s  %s\n", glyph, w.ID, w.TaskID, w.Branch, owner)
	}
	return nil
}

func runWorktreesRelease(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.orch.Provisioner().Release(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s released worktree %s\n", color.GreenString("✓"), args[0])
	return nil
}

func runWorktreesDestroy(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.orch.Provisioner().Destroy(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s destroyed worktree %s\n", color.GreenString("✓"), args[0])
	return nil
}
