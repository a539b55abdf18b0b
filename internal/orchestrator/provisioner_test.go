package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/ShayCichocki/foreman/pkg/models"
)

func TestProvisionCreatesActiveWorktree(t *testing.T) {
	fg := newFakeGit()
	o, db := newTestOrchestrator(t, fg, newFakeRunner())
	task := mustCreateTask(t, db, &models.Task{ID: "a"})

	w, err := o.provisioner.Provision(context.Background(), task)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if w.Status != models.WorktreeActive {
		t.Errorf("worktree status = %q, want %q", w.Status, models.WorktreeActive)
	}
	if !w.Active() {
		t.Error("provisioned worktree should report Active()")
	}
	if w.Branch != "task-a" {
		t.Errorf("branch = %q, want %q", w.Branch, "task-a")
	}

	stored, err := db.GetActiveWorktreeForTask("a")
	if err != nil {
		t.Fatalf("GetActiveWorktreeForTask: %v", err)
	}
	if stored == nil || stored.ID != w.ID {
		t.Fatalf("active worktree lookup = %+v, want id %s", stored, w.ID)
	}
}

func TestProvisionRejectsSecondActiveWorktree(t *testing.T) {
	fg := newFakeGit()
	o, db := newTestOrchestrator(t, fg, newFakeRunner())
	task := mustCreateTask(t, db, &models.Task{ID: "a"})

	if _, err := o.provisioner.Provision(context.Background(), task); err != nil {
		t.Fatalf("first Provision: %v", err)
	}
	_, err := o.provisioner.Provision(context.Background(), task)
	if !errors.Is(err, ErrWorktreeExists) {
		t.Fatalf("second Provision err = %v, want ErrWorktreeExists", err)
	}
}
