package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// Wait polling defaults.
const (
	defaultWaitTimeout  = 10 * time.Minute
	defaultPollInterval = 2 * time.Second
)

// WaitResult reports the outcome of waiting on one task.
type WaitResult struct {
	// Completed is true when the task closed within the window.
	Completed bool `json:"completed"`
	// TimedOut is true when the window elapsed first. Both fields false
	// means the task reached a terminal state other than closed.
	TimedOut bool `json:"timed_out"`
	// WaitTime is how long the wait lasted.
	WaitTime time.Duration `json:"wait_time"`
}

// WaitForTask polls the task until it reaches a terminal status, the
// timeout elapses, or the context is canceled. Unknown tasks fail
// immediately rather than waiting on nothing.
func (o *Orchestrator) WaitForTask(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (*WaitResult, error) {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	start := time.Now()

	task, err := o.tasks.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("look up task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, fmt.Errorf("unknown task %s", taskID)
	}
	if task.Status.Terminal() {
		return &WaitResult{
			Completed: task.Status == models.TaskStatusClosed,
			WaitTime:  time.Since(start),
		}, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return &WaitResult{TimedOut: true, WaitTime: time.Since(start)}, nil
		case <-ticker.C:
			task, err := o.tasks.GetTask(taskID)
			if err != nil {
				return nil, fmt.Errorf("look up task %s: %w", taskID, err)
			}
			if task == nil {
				return nil, fmt.Errorf("task %s disappeared while waiting", taskID)
			}
			if task.Status.Terminal() {
				return &WaitResult{
					Completed: task.Status == models.TaskStatusClosed,
					WaitTime:  time.Since(start),
				}, nil
			}
		}
	}
}
