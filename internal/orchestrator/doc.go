// Package orchestrator coordinates autonomous coding-agent workers on a
// dependency-ordered task graph. Each ready task is assigned a worker in
// its own git worktree and branch; the orchestrator reconciles worker
// status from durable signals (task state, process liveness, worktree
// ownership) and merges approved work back into a base branch.
//
// The engine is pass-based: the caller drives discrete provision+spawn,
// reconciliation, and cleanup passes, and the only persisted
// representation of progress is the per-session orchestration state
// document. Nothing here trusts in-memory process handles across restarts.
package orchestrator
