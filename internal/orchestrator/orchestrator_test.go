package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/foreman/pkg/models"
)

const testSession = "parent-session"

func TestOrchestrateConfigErrors(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	ctx := context.Background()

	if _, err := o.OrchestrateReadyTasks(ctx, "root", "", 4, ModeWorktree); err == nil {
		t.Error("expected error for missing parent session id")
	}
	if _, err := o.OrchestrateReadyTasks(ctx, "", testSession, 4, ModeWorktree); err == nil {
		t.Error("expected error for missing parent task id")
	}
	if _, err := o.OrchestrateReadyTasks(ctx, "root", testSession, 4, Mode("container")); err == nil {
		t.Error("expected error for unsupported mode")
	}
	if _, err := o.OrchestrateReadyTasks(ctx, "missing", testSession, 4, ModeWorktree); err == nil {
		t.Error("expected error for unknown parent task")
	}

	o.runner = nil
	if _, err := o.OrchestrateReadyTasks(ctx, "root", testSession, 4, ModeWorktree); err == nil {
		t.Error("expected error when no runner is configured")
	}
}

func TestOrchestrateSpawnsReadyTasks(t *testing.T) {
	fg := newFakeGit()
	fr := newFakeRunner()
	o, db := newTestOrchestrator(t, fg, fr)
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})
	mustCreateTask(t, db, &models.Task{ID: "b", ParentID: "root"})

	res, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModeWorktree)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks: %v", err)
	}
	if res.SpawnedCount != 2 || res.SkippedCount != 0 {
		t.Fatalf("spawned=%d skipped=%d, want 2/0", res.SpawnedCount, res.SkippedCount)
	}

	// Worktrees exist and are claimed by the workers.
	for _, rec := range res.Spawned {
		w, err := db.GetWorktree(rec.WorktreeID)
		if err != nil || w == nil {
			t.Fatalf("worktree %s not recorded: %v", rec.WorktreeID, err)
		}
		if w.AgentSessionID != rec.SessionID {
			t.Errorf("worktree %s claimed by %q, want %q", w.ID, w.AgentSessionID, rec.SessionID)
		}
		if !w.Active() {
			t.Errorf("worktree %s not active", w.ID)
		}
	}

	// The state document holds both spawned records.
	st, _, err := loadAgentState(db, testSession)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if len(st.Spawned) != 2 {
		t.Errorf("state has %d spawned records, want 2", len(st.Spawned))
	}
}

func TestOrchestratePlanModeMutatesNothing(t *testing.T) {
	fg := newFakeGit()
	o, db := newTestOrchestrator(t, fg, newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})

	res, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModePlan)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks: %v", err)
	}
	if res.SpawnedCount != 0 || res.SkippedCount != 1 {
		t.Fatalf("spawned=%d skipped=%d, want 0/1", res.SpawnedCount, res.SkippedCount)
	}
	if len(fg.addedWorktrees) != 0 {
		t.Errorf("plan mode created worktrees: %v", fg.addedWorktrees)
	}

	st, _, err := loadAgentState(db, testSession)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if len(st.Spawned) != 0 {
		t.Errorf("plan mode mutated the state document: %+v", st.Spawned)
	}
}

func TestOrchestrateConcurrencyLimit(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root", Priority: 1})
	mustCreateTask(t, db, &models.Task{ID: "b", ParentID: "root", Priority: 2})

	res, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 1, ModeWorktree)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks: %v", err)
	}
	if res.SpawnedCount != 1 || res.SkippedCount != 1 {
		t.Fatalf("spawned=%d skipped=%d, want 1/1", res.SpawnedCount, res.SkippedCount)
	}
	if res.Spawned[0].TaskID != "a" {
		t.Errorf("spawned %s first, want a", res.Spawned[0].TaskID)
	}
	if !strings.Contains(res.Skipped[0].Reason, "concurrency limit") {
		t.Errorf("skip reason = %q, want a concurrency limit reason", res.Skipped[0].Reason)
	}

	// The skipped task is still ready on the next pass and gets spawned
	// once the live worker finishes.
	if err := db.SetTaskStatus("a", models.TaskStatusClosed, "done"); err != nil {
		t.Fatalf("close a: %v", err)
	}
	if _, err := o.PollAgentStatus(context.Background(), testSession); err != nil {
		t.Fatalf("PollAgentStatus: %v", err)
	}
	res, err = o.OrchestrateReadyTasks(context.Background(), "root", testSession, 1, ModeWorktree)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.SpawnedCount != 1 || res.Spawned[0].TaskID != "b" {
		t.Fatalf("second pass spawned %+v, want task b", res.Spawned)
	}
}

func TestOrchestrateSkipsAlreadySpawned(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})

	if _, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModeWorktree); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	res, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModeWorktree)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.SpawnedCount != 0 || res.SkippedCount != 1 {
		t.Fatalf("spawned=%d skipped=%d, want 0/1", res.SpawnedCount, res.SkippedCount)
	}
	if !strings.Contains(res.Skipped[0].Reason, "already") {
		t.Errorf("skip reason = %q", res.Skipped[0].Reason)
	}
}

func TestOrchestrateProvisioningFailureRollsBack(t *testing.T) {
	fg := newFakeGit()
	fg.worktreeAddErr = errors.New("disk full")
	o, db := newTestOrchestrator(t, fg, newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})

	res, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModeWorktree)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks: %v", err)
	}
	if res.SpawnedCount != 0 || res.SkippedCount != 1 {
		t.Fatalf("spawned=%d skipped=%d, want 0/1", res.SpawnedCount, res.SkippedCount)
	}
	if !strings.Contains(res.Skipped[0].Reason, "provisioning failed") {
		t.Errorf("skip reason = %q", res.Skipped[0].Reason)
	}

	// The worktree record was rolled back; the task stays retryable.
	w, err := db.GetActiveWorktreeForTask("a")
	if err != nil {
		t.Fatalf("GetActiveWorktreeForTask: %v", err)
	}
	if w != nil {
		t.Errorf("expected no worktree record after rollback, got %+v", w)
	}
}

func TestOrchestrateSpawnFailureDestroysWorktree(t *testing.T) {
	fg := newFakeGit()
	fr := newFakeRunner()
	fr.spawnErr = errors.New("agent binary crashed on startup")
	o, db := newTestOrchestrator(t, fg, fr)
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})

	res, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModeWorktree)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks: %v", err)
	}
	if res.SpawnedCount != 0 || res.SkippedCount != 1 {
		t.Fatalf("spawned=%d skipped=%d, want 0/1", res.SpawnedCount, res.SkippedCount)
	}
	if !strings.Contains(res.Skipped[0].Reason, "spawn failed") {
		t.Errorf("skip reason = %q", res.Skipped[0].Reason)
	}
	if len(fg.removedWorktrees) != 1 {
		t.Errorf("expected the provisioned worktree to be removed, removed=%v", fg.removedWorktrees)
	}
	w, err := db.GetActiveWorktreeForTask("a")
	if err != nil {
		t.Fatalf("GetActiveWorktreeForTask: %v", err)
	}
	if w != nil {
		t.Errorf("expected no active worktree after spawn failure, got %+v", w)
	}
}

func TestOrchestrateSkipsTaskWithExistingWorktree(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})
	if err := db.CreateWorktree(&models.Worktree{
		ID: "wt-stale", Project: "/repo", Branch: "task-a", Path: "/tmp/task-a",
		BaseBranch: "main", TaskID: "a",
	}); err != nil {
		t.Fatalf("seed worktree: %v", err)
	}

	res, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModeWorktree)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks: %v", err)
	}
	if res.SpawnedCount != 0 || res.SkippedCount != 1 {
		t.Fatalf("spawned=%d skipped=%d, want 0/1", res.SpawnedCount, res.SkippedCount)
	}
	if !strings.Contains(res.Skipped[0].Reason, "worktree already exists") {
		t.Errorf("skip reason = %q", res.Skipped[0].Reason)
	}
}

func TestOrchestrateCannotSpawn(t *testing.T) {
	fr := newFakeRunner()
	fr.canSpawn = false
	fr.reason = "max spawn depth 3 reached"
	o, db := newTestOrchestrator(t, newFakeGit(), fr)
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})

	_, err := o.OrchestrateReadyTasks(context.Background(), "root", testSession, 4, ModeWorktree)
	if err == nil || !strings.Contains(err.Error(), "max spawn depth") {
		t.Fatalf("err = %v, want spawn-capability error", err)
	}
}
