// Package git provides an interface for git operations.
package git

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// CheckoutBranch switches to the specified branch.
	CheckoutBranch(name string) error
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
	// HeadCommit returns the commit hash a ref points at.
	HeadCommit(ref string) (string, error)
}

// MergeOperations defines the interface for git merge operations.
type MergeOperations interface {
	// MergeNoFF merges the specified branch creating a merge commit (--no-ff).
	MergeNoFF(branch string) error
	// MergeNoFFMessage merges the specified branch with --no-ff and a custom message.
	MergeNoFFMessage(branch, message string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort() error
	// ConflictedFiles returns a list of files with unmerged changes.
	ConflictedFiles() ([]string, error)
	// DiffBetween returns the diff between two refs.
	DiffBetween(ref1, ref2 string) (string, error)
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a worktree with a new branch off the
	// given base ref (git worktree add -b <branch> <path> <base>).
	WorktreeAddNewBranch(path, branch, base string) error
	// WorktreeRemove removes the worktree at the given path (force).
	WorktreeRemove(path string) error
	// WorktreeUnlock unlocks a locked worktree.
	WorktreeUnlock(path string) error
	// WorktreeListPorcelain returns the raw porcelain output for parsing.
	WorktreeListPorcelain() (string, error)
	// WorktreePruneExpireNow prunes stale worktree entries with --expire now.
	WorktreePruneExpireNow() error
}

// RemoteOperations defines the interface for git remote operations.
type RemoteOperations interface {
	// Fetch fetches the given branch from the remote. Returns nil if no
	// remote is configured.
	Fetch(remote, branch string) error
	// Push pushes the given branch to the remote.
	Push(remote, branch string) error
}

// Runner defines the complete interface for git operations used by the
// orchestrator. Consumers should prefer the focused interfaces when possible.
type Runner interface {
	BranchOperations
	MergeOperations
	WorktreeOperations
	RemoteOperations
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
