// Package runner provides the agent-runner capability: launching worker
// processes into worktrees and probing their liveness. The orchestrator
// consumes the Runner interface; production code uses LocalRunner, tests
// inject fakes.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/foreman/internal/state"
)

// DepthEnv carries the spawn nesting depth into worker processes so a
// worker that itself runs foreman cannot recurse without bound.
const DepthEnv = "FOREMAN_DEPTH"

// SessionEnv carries the worker's session id into the spawned process.
const SessionEnv = "FOREMAN_SESSION_ID"

// TaskEnv carries the task id into the spawned process.
const TaskEnv = "FOREMAN_TASK_ID"

// Handle identifies a launched worker.
type Handle struct {
	// SessionID is the worker's session identifier.
	SessionID string
	// RunID identifies this particular launch.
	RunID string
	// PID is the worker's process id.
	PID int
}

// SpawnRequest describes a worker to launch.
type SpawnRequest struct {
	// SessionID is the pre-allocated session id for the worker.
	SessionID string
	// TaskID is the task the worker will work on.
	TaskID string
	// WorktreePath is the workspace the worker runs in.
	WorktreePath string
	// Prompt is the instruction passed to the worker command.
	Prompt string
}

// Runner defines the agent-runner capability.
type Runner interface {
	// CanSpawn reports whether a worker may be launched, a human-readable
	// reason when it may not, and the current spawn nesting depth.
	CanSpawn() (ok bool, reason string, depth int)
	// Spawn launches a worker and returns its handle.
	Spawn(ctx context.Context, req SpawnRequest) (*Handle, error)
	// GetRunning returns the handle of a live worker for the session, or
	// nil if no live worker is found.
	GetRunning(sessionID string) *Handle
}

// LocalRunner launches worker processes on the local machine, detached
// from the orchestrator, logging to .foreman/logs. Handles are persisted
// so liveness survives orchestrator restarts.
type LocalRunner struct {
	command  string
	args     []string
	logDir   string
	maxDepth int
	handles  state.HandleStore
}

// NewLocalRunner creates a LocalRunner. command is the worker executable
// (e.g. "claude"), args are fixed arguments placed before the prompt.
func NewLocalRunner(command string, args []string, logDir string, maxDepth int, handles state.HandleStore) *LocalRunner {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &LocalRunner{
		command:  command,
		args:     args,
		logDir:   logDir,
		maxDepth: maxDepth,
		handles:  handles,
	}
}

// CanSpawn reports whether a worker may be launched.
func (r *LocalRunner) CanSpawn() (bool, string, int) {
	depth := currentDepth()
	if r.command == "" {
		return false, "no worker command configured", depth
	}
	if _, err := exec.LookPath(r.command); err != nil {
		return false, fmt.Sprintf("worker command %q not found in PATH", r.command), depth
	}
	if depth >= r.maxDepth {
		return false, fmt.Sprintf("max spawn depth %d reached", r.maxDepth), depth
	}
	return true, "", depth
}

// Spawn launches a worker process bound to the worktree and records its
// handle. The process is detached: it outlives the orchestrator.
func (r *LocalRunner) Spawn(ctx context.Context, req SpawnRequest) (*Handle, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	runID := uuid.New().String()

	args := append(append([]string(nil), r.args...), "-p", req.Prompt)
	cmd := exec.Command(r.command, args...)
	cmd.Dir = req.WorktreePath
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", DepthEnv, currentDepth()+1),
		fmt.Sprintf("%s=%s", SessionEnv, req.SessionID),
		fmt.Sprintf("%s=%s", TaskEnv, req.TaskID),
	)

	if r.logDir != "" {
		if err := os.MkdirAll(r.logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logPath := filepath.Join(r.logDir, req.SessionID+".log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open worker log: %w", err)
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		defer logFile.Close()
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	// Reap the child when it exits so it doesn't linger as a zombie while
	// the orchestrator is still alive.
	go func() { _ = cmd.Wait() }()

	handle := &Handle{
		SessionID: req.SessionID,
		RunID:     runID,
		PID:       cmd.Process.Pid,
	}

	if err := r.handles.CreateAgentHandle(&state.AgentHandle{
		SessionID:    handle.SessionID,
		RunID:        handle.RunID,
		PID:          handle.PID,
		Command:      r.command,
		WorktreePath: req.WorktreePath,
		StartedAt:    time.Now(),
	}); err != nil {
		// Without a persisted handle the worker is invisible to liveness
		// checks. Stop it before reporting the spawn failed; the caller
		// rolls the worktree back.
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("record worker handle: %w", err)
	}

	return handle, nil
}

// GetRunning returns the handle of a live worker for the session, or nil.
func (r *LocalRunner) GetRunning(sessionID string) *Handle {
	h, err := r.handles.GetAgentHandle(sessionID)
	if err != nil || h == nil {
		return nil
	}
	if !processAlive(h.PID) {
		return nil
	}
	return &Handle{SessionID: h.SessionID, RunID: h.RunID, PID: h.PID}
}

// currentDepth reads the spawn nesting depth from the environment.
func currentDepth() int {
	v := os.Getenv(DepthEnv)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Verify LocalRunner implements Runner at compile time.
var _ Runner = (*LocalRunner)(nil)
