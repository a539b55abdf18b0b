package orchestrator

// Mode selects how an orchestration pass treats ready tasks.
type Mode string

const (
	// ModeWorktree provisions a worktree per ready task and spawns a worker
	// into it.
	ModeWorktree Mode = "worktree"
	// ModePlan resolves ready tasks and reports what would be spawned
	// without mutating anything.
	ModePlan Mode = "plan"
)

// Valid returns true if the mode is supported.
func (m Mode) Valid() bool {
	switch m {
	case ModeWorktree, ModePlan:
		return true
	default:
		return false
	}
}

// Options configures an Orchestrator.
type Options struct {
	// RepoPath is the root of the git repository workers operate on.
	RepoPath string
	// BaseBranch is the branch worktrees are created from and merged to.
	BaseBranch string
	// Remote is the git remote used for fetch/push; empty means local only.
	Remote string
	// WorktreeDir is the base directory worktrees are created under.
	WorktreeDir string
	// MaxConcurrent bounds how many workers one pass may have spawned.
	// Used when the caller passes a non-positive limit.
	MaxConcurrent int
	// CopyFiles lists repo-relative files copied into each new worktree
	// during workspace initialization.
	CopyFiles []string
	// InitHooks lists shell commands run inside each new worktree during
	// workspace initialization.
	InitHooks []string
}

// defaultMaxConcurrent bounds a pass when neither the caller nor the
// options provide a limit.
const defaultMaxConcurrent = 4
