package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/config"
	execrunner "github.com/ShayCichocki/foreman/internal/exec"
	"github.com/ShayCichocki/foreman/internal/git"
	"github.com/ShayCichocki/foreman/internal/orchestrator"
	"github.com/ShayCichocki/foreman/internal/runner"
	"github.com/ShayCichocki/foreman/internal/state"
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Task orchestrator for autonomous coding agents",
	Long: `Foreman coordinates autonomous coding-agent workers on a task graph.

Each ready task gets its own git worktree and branch and a worker spawned
into it. Foreman reconciles worker status from durable signals, queues
completed branches for review, and merges approved work back into the
base branch.

Typical flow:
  foreman init
  foreman tasks import plan.yaml
  foreman orchestrate <parent-task-id> --session <id>
  foreman status --session <id> --watch
  foreman review auto --session <id>
  foreman cleanup --session <id>`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(worktreesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}

// findProjectRoot walks up from the working directory looking for a
// .foreman directory.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	dir := cwd
	for {
		if info, err := os.Stat(filepath.Join(dir, ".foreman")); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no .foreman directory found in %s or any parent; run 'foreman init' first", cwd)
}

// project bundles everything a command needs to operate on one project.
type project struct {
	root string
	cfg  *config.Config
	db   *state.DB
	orch *orchestrator.Orchestrator
	git  git.Runner
}

// openProject locates the project root, opens its database, and wires an
// orchestrator from the loaded configuration.
func openProject() (*project, error) {
	root, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := state.OpenProject(root)
	if err != nil {
		return nil, fmt.Errorf("open project database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	worktreeDir := cfg.Worktrees.Dir
	if !filepath.IsAbs(worktreeDir) {
		worktreeDir = filepath.Join(root, worktreeDir)
	}

	gitRunner := git.NewRunner(root)
	agentRunner := runner.NewLocalRunner(
		cfg.Runner.Command,
		cfg.Runner.Args,
		filepath.Join(root, ".foreman", "logs"),
		cfg.Runner.MaxDepth,
		db,
	)

	orch := orchestrator.New(db, gitRunner, agentRunner, execrunner.NewRunner(), orchestrator.Options{
		RepoPath:      root,
		BaseBranch:    cfg.Git.BaseBranch,
		Remote:        cfg.Git.Remote,
		WorktreeDir:   worktreeDir,
		MaxConcurrent: cfg.Orchestrator.MaxConcurrent,
		CopyFiles:     cfg.Workspace.CopyFiles,
		InitHooks:     cfg.Workspace.InitCommands,
	})
	if os.Getenv("FOREMAN_DEBUG") != "" {
		orch.SetDebugLog(func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "debug: "+format+"\n", args...)
		})
	}

	return &project{root: root, cfg: cfg, db: db, orch: orch, git: gitRunner}, nil
}

func (p *project) Close() {
	p.db.Close()
}
