package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage the task graph",
}

var (
	taskAddParent      string
	taskAddDescription string
	taskAddPriority    int
	taskAddType        string
	taskAddDependsOn   []string

	taskCloseReason string
	taskCloseForce  bool
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the task tree",
	RunE:  runTaskList,
}

var taskCloseCmd = &cobra.Command{
	Use:   "close <task-id>",
	Short: "Close a task",
	Long: `Mark a task closed. A task with open children cannot be closed
unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskClose,
}

var taskImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import a task tree from YAML",
	Long: `Import tasks from a YAML plan. Nested children become child tasks;
depends_on entries become blocking dependencies.

Example plan:

  tasks:
    - id: epic-auth
      title: Authentication epic
      type: epic
      children:
        - id: auth-model
          title: Add user model
        - id: auth-api
          title: Add login endpoint
          depends_on: [auth-model]`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskImport,
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddParent, "parent", "", "Parent task id")
	taskAddCmd.Flags().StringVar(&taskAddDescription, "description", "", "Task description")
	taskAddCmd.Flags().IntVar(&taskAddPriority, "priority", 0, "Priority (lower runs first)")
	taskAddCmd.Flags().StringVar(&taskAddType, "type", "feature", "Task type: feature, bug, chore, epic")
	taskAddCmd.Flags().StringSliceVar(&taskAddDependsOn, "depends-on", nil, "Task ids that must close first")

	taskCloseCmd.Flags().StringVar(&taskCloseReason, "reason", "", "Why the task is closed")
	taskCloseCmd.Flags().BoolVar(&taskCloseForce, "force", false, "Close even with open children")

	tasksCmd.AddCommand(taskAddCmd)
	tasksCmd.AddCommand(taskListCmd)
	tasksCmd.AddCommand(taskCloseCmd)
	tasksCmd.AddCommand(taskImportCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	task := &models.Task{
		ID:          uuid.New().String(),
		ParentID:    taskAddParent,
		Title:       args[0],
		Description: taskAddDescription,
		Priority:    taskAddPriority,
		Type:        models.TaskType(taskAddType),
	}
	if err := p.db.CreateTask(task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	for _, dep := range taskAddDependsOn {
		err := p.db.CreateDependency(&models.Dependency{
			TaskID:    task.ID,
			DependsOn: dep,
			Kind:      models.DependencyBlocks,
		})
		if err != nil {
			return fmt.Errorf("record dependency on %s: %w", dep, err)
		}
	}

	fmt.Printf("%s created task %s\n", color.GreenString("✓"), task.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	roots, err := p.db.ListRoots()
	if err != nil {
		return fmt.Errorf("list root tasks: %w", err)
	}
	if len(roots) == 0 {
		fmt.Println("No tasks. Add one with 'foreman tasks add'.")
		return nil
	}

	for _, root := range roots {
		if err := printTaskTree(p.db, root, 0); err != nil {
			return err
		}
	}
	return nil
}

func printTaskTree(db *state.DB, task *models.Task, depth int) error {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s %s  %s\n", indent, statusGlyph(task.Status), task.ID, task.Title)

	children, err := db.ListChildren(task.ID)
	if err != nil {
		return fmt.Errorf("list children of %s: %w", task.ID, err)
	}
	for _, child := range children {
		if err := printTaskTree(db, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func statusGlyph(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusClosed:
		return color.GreenString("✓")
	case models.TaskStatusInProgress:
		return color.YellowString("…")
	case models.TaskStatusFailed:
		return color.RedString("✗")
	default:
		return color.WhiteString("·")
	}
}

func runTaskClose(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	if taskCloseReason != "" {
		if err := p.db.SetTaskStatus(args[0], models.TaskStatusClosed, taskCloseReason); err != nil {
			return err
		}
	} else if err := p.db.CloseTask(args[0], taskCloseForce); err != nil {
		return err
	}

	fmt.Printf("%s closed task %s\n", color.GreenString("✓"), args[0])
	return nil
}

// planTask is one task entry in an imported YAML plan.
type planTask struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Type        string     `yaml:"type"`
	Priority    int        `yaml:"priority"`
	DependsOn   []string   `yaml:"depends_on"`
	Children    []planTask `yaml:"children"`
}

// plan is the root of an imported YAML plan.
type plan struct {
	Tasks []planTask `yaml:"tasks"`
}

func runTaskImport(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	var pl plan
	if err := yaml.Unmarshal(data, &pl); err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}
	if len(pl.Tasks) == 0 {
		return fmt.Errorf("plan %s contains no tasks", args[0])
	}

	count := 0
	for i := range pl.Tasks {
		n, err := importTask(p.db, &pl.Tasks[i], "")
		if err != nil {
			return err
		}
		count += n
	}

	fmt.Printf("%s imported %d task(s) from %s\n", color.GreenString("✓"), count, args[0])
	return nil
}

// importTask inserts one plan entry and its children. Dependencies are
// recorded after the task so forward references inside the plan work.
func importTask(db *state.DB, pt *planTask, parentID string) (int, error) {
	if pt.Title == "" {
		return 0, fmt.Errorf("task %q has no title", pt.ID)
	}
	if pt.ID == "" {
		pt.ID = uuid.New().String()
	}

	taskType := models.TaskType(pt.Type)
	if pt.Type == "" {
		taskType = models.TaskTypeFeature
		if len(pt.Children) > 0 {
			taskType = models.TaskTypeEpic
		}
	}

	task := &models.Task{
		ID:          pt.ID,
		ParentID:    parentID,
		Title:       pt.Title,
		Description: pt.Description,
		Priority:    pt.Priority,
		Type:        taskType,
	}
	if err := db.CreateTask(task); err != nil {
		return 0, fmt.Errorf("create task %s: %w", pt.ID, err)
	}

	for _, dep := range pt.DependsOn {
		err := db.CreateDependency(&models.Dependency{
			TaskID:    pt.ID,
			DependsOn: dep,
			Kind:      models.DependencyBlocks,
		})
		if err != nil {
			return 0, fmt.Errorf("record dependency %s -> %s: %w", pt.ID, dep, err)
		}
	}

	count := 1
	for i := range pt.Children {
		n, err := importTask(db, &pt.Children[i], pt.ID)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}
