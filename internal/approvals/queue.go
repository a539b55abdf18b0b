// Package approvals implements a file-drop review queue under
// .foreman/approvals. Completed workers awaiting review get a pending
// marker; a human (or tooling) drops approve/reject files, and the watch
// loop consumes them into review decisions. fsnotify provides prompt
// wakeups, with a direct directory scan as the fallback so decisions are
// never missed.
package approvals

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Decision is a consumed review decision for one task.
type Decision struct {
	// TaskID is the task the decision applies to.
	TaskID string
	// Approve is true for approve files, false for reject files.
	Approve bool
	// Reason is the file contents, typically empty for approvals.
	Reason string
}

// Queue is a file-backed approval queue for one project.
type Queue struct {
	dir string

	mu    sync.Mutex
	dirty bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewQueue creates the approvals directory and starts watching it. A
// watcher failure is not fatal; Scan still works by reading the directory.
func NewQueue(projectRoot string) (*Queue, error) {
	dir := filepath.Join(projectRoot, ".foreman", "approvals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create approvals directory: %w", err)
	}

	q := &Queue{
		dir:   dir,
		dirty: true,
		done:  make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return q, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return q, nil
	}
	q.watcher = watcher

	go q.watch()

	return q, nil
}

// watch marks the queue dirty whenever a decision file appears.
func (q *Queue) watch() {
	for {
		select {
		case <-q.done:
			return
		case event, ok := <-q.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				q.mu.Lock()
				q.dirty = true
				q.mu.Unlock()
			}
		case <-q.watcher.Errors:
			// Keep watching; Scan reads the directory directly anyway.
		}
	}
}

// Dir returns the approvals directory.
func (q *Queue) Dir() string {
	return q.dir
}

// Dirty reports whether a decision file may have appeared since the last
// Scan. Callers without a watcher should Scan unconditionally.
func (q *Queue) Dirty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dirty
}

// RequestApproval drops a pending marker so reviewers can see what awaits
// a decision.
func (q *Queue) RequestApproval(taskID, branch string) error {
	body := fmt.Sprintf("task: %s\nbranch: %s\nrequested: %s\n\nDecide with:\n  foreman review approve %s\n  foreman review reject %s --reason \"...\"\n",
		taskID, branch, time.Now().Format(time.RFC3339), taskID, taskID)
	return os.WriteFile(filepath.Join(q.dir, "pending-"+taskID), []byte(body), 0644)
}

// Approve drops an approve file for the task.
func (q *Queue) Approve(taskID string) error {
	return os.WriteFile(filepath.Join(q.dir, "approve-"+taskID), nil, 0644)
}

// Reject drops a reject file for the task with the given reason.
func (q *Queue) Reject(taskID, reason string) error {
	return os.WriteFile(filepath.Join(q.dir, "reject-"+taskID), []byte(reason), 0644)
}

// Scan consumes every decision file in the directory and returns the
// decisions. Pending markers for decided tasks are removed. Scan reads
// the directory directly, so it works with or without the watcher.
func (q *Queue) Scan() ([]Decision, error) {
	q.mu.Lock()
	q.dirty = false
	q.mu.Unlock()

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("read approvals directory: %w", err)
	}

	var decisions []Decision
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var approve bool
		var taskID string
		switch {
		case strings.HasPrefix(name, "approve-"):
			approve = true
			taskID = strings.TrimPrefix(name, "approve-")
		case strings.HasPrefix(name, "reject-"):
			taskID = strings.TrimPrefix(name, "reject-")
		default:
			continue
		}
		if taskID == "" {
			continue
		}

		content, err := os.ReadFile(filepath.Join(q.dir, name))
		if err != nil {
			return decisions, fmt.Errorf("read decision %s: %w", name, err)
		}

		decisions = append(decisions, Decision{
			TaskID:  taskID,
			Approve: approve,
			Reason:  strings.TrimSpace(string(content)),
		})

		os.Remove(filepath.Join(q.dir, name))
		os.Remove(filepath.Join(q.dir, "pending-"+taskID))
	}

	return decisions, nil
}

// Close shuts down the watcher.
func (q *Queue) Close() {
	close(q.done)
	if q.watcher != nil {
		q.watcher.Close()
	}
}
