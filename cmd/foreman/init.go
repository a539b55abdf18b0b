package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/state"
)

var (
	initForce           bool
	initSkipRunnerCheck bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Foreman project",
	Long: `Initialize a directory for use with Foreman.

This command sets up everything needed to orchestrate workers:
  - Verifies prerequisites (git, the worker command)
  - Creates the .foreman directory structure
  - Creates and migrates the project state database
  - Updates .gitignore and writes a .foreman.yaml template

The directory argument is optional and defaults to the current directory.

Examples:
  foreman init              # Initialize current directory
  foreman init ./myproject  # Initialize specific directory
  foreman init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initSkipRunnerCheck, "skip-runner-check", false, "Skip worker command availability check")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Foreman in %s...\n\n", absPath)

	foremanDir := filepath.Join(absPath, ".foreman")
	if _, err := os.Stat(foremanDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if _, err := exec.LookPath("git"); err != nil {
		printStatus("✗", "Git not found", color.FgRed)
		return fmt.Errorf("git not found in PATH\n\n" +
			"Foreman requires git to manage worktrees and branches.\n\n" +
			"Install git with:\n" +
			"  - macOS: brew install git\n" +
			"  - Ubuntu/Debian: sudo apt-get install git\n" +
			"  - Other: https://git-scm.com/downloads")
	}
	printStatus("✓", "Git found", color.FgGreen)

	if _, err := os.Stat(filepath.Join(absPath, ".git")); os.IsNotExist(err) {
		printStatus("✗", "Not a git repository", color.FgRed)
		return fmt.Errorf("%s is not a git repository; run 'git init' first", absPath)
	}
	printStatus("✓", "Git repository exists", color.FgGreen)

	if !initSkipRunnerCheck {
		if _, err := exec.LookPath("claude"); err != nil {
			printStatus("⚠", "Worker command 'claude' not found in PATH (configure runner.command later)", color.FgYellow)
		} else {
			printStatus("✓", "Worker command found", color.FgGreen)
		}
	}

	for _, dir := range []string{
		foremanDir,
		filepath.Join(foremanDir, "logs"),
		filepath.Join(foremanDir, "approvals"),
		filepath.Join(foremanDir, "worktrees"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .foreman directory structure", color.FgGreen)

	db, err := state.OpenProject(absPath)
	if err != nil {
		return fmt.Errorf("creating state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating state database: %w", err)
	}
	printStatus("✓", "Created project state database", color.FgGreen)

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with Foreman entries", color.FgGreen)

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .foreman.yaml template", color.FgGreen)

	fmt.Printf("\n%s Foreman initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Describe your work:")
	fmt.Println("     foreman tasks import plan.yaml")
	fmt.Println("     # or: foreman tasks add \"task title\"")
	fmt.Println()
	fmt.Println("  2. Orchestrate workers:")
	fmt.Println("     foreman orchestrate <parent-task-id> --session my-session")
	fmt.Println()
	fmt.Println("  3. Watch progress:")
	fmt.Println("     foreman status --session my-session --watch")

	return nil
}

// updateGitignore adds Foreman entries to .gitignore if not present.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	foremanEntries := []string{
		".foreman/state.db*",
		".foreman/logs/",
		".foreman/approvals/",
		".foreman/worktrees/",
	}

	needsUpdate := false
	for _, entry := range foremanEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# Foreman\n")
	for _, entry := range foremanEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// createProjectConfig writes a .foreman.yaml template if none exists.
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".foreman.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	template := `# Foreman Project Configuration
# This file overrides defaults from ~/.config/foreman/config.yaml

# git:
#   base_branch: main
#   remote: origin

# orchestrator:
#   max_concurrent: 4
#   mode: worktree

# runner:
#   command: claude
#   args: ["--dangerously-skip-permissions"]
#   max_depth: 3

# workspace:
#   copy_files: [".env"]
#   init_commands: ["npm install"]

# review:
#   model: claude-sonnet-4-5
#   auto_approve: false
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// printStatus prints a status line with color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
