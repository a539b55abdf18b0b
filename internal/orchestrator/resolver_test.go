package orchestrator

import (
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/pkg/models"
)

func taskIDs(tasks []*models.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func assertIDs(t *testing.T, got []*models.Task, want ...string) {
	t.Helper()
	ids := taskIDs(got)
	if len(ids) != len(want) {
		t.Fatalf("ready = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ready = %v, want %v", ids, want)
		}
	}
}

func TestReadyDescendantsUnknownParent(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	if _, err := o.resolver.ReadyDescendants("nope"); err == nil {
		t.Fatal("expected error for unknown parent")
	}
}

func TestReadyDescendantsExcludesNonOpen(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})
	mustCreateTask(t, db, &models.Task{ID: "b", ParentID: "root", Status: models.TaskStatusInProgress})
	mustCreateTask(t, db, &models.Task{ID: "c", ParentID: "root", Status: models.TaskStatusClosed})
	mustCreateTask(t, db, &models.Task{ID: "d", ParentID: "root", Status: models.TaskStatusFailed})

	ready, err := o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready, "a")
}

func TestReadyDescendantsBlockingDependency(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})
	mustCreateTask(t, db, &models.Task{ID: "b", ParentID: "root"})
	mustDependOn(t, db, "b", "a")

	ready, err := o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready, "a")

	// Closing the dependency unblocks b.
	if err := db.SetTaskStatus("a", models.TaskStatusClosed, "done"); err != nil {
		t.Fatalf("close a: %v", err)
	}
	ready, err = o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready, "b")
}

func TestReadyDescendantsCrossBranchDependency(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})
	// Dependency target lives outside the orchestrated subtree.
	mustCreateTask(t, db, &models.Task{ID: "external", Status: models.TaskStatusInProgress})
	mustDependOn(t, db, "a", "external")

	ready, err := o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready)

	if err := db.SetTaskStatus("external", models.TaskStatusClosed, ""); err != nil {
		t.Fatalf("close external: %v", err)
	}
	ready, err = o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready, "a")
}

func TestReadyDescendantsDanglingDependencyBlocks(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "a", ParentID: "root"})
	mustDependOn(t, db, "a", "never-created")

	ready, err := o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready)
}

func TestReadyDescendantsBlockedAncestorShadowsSubtree(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "gate", ParentID: "root"})
	mustCreateTask(t, db, &models.Task{ID: "epic", ParentID: "root", Type: models.TaskTypeEpic})
	mustCreateTask(t, db, &models.Task{ID: "leaf", ParentID: "epic"})
	mustDependOn(t, db, "epic", "gate")

	ready, err := o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	// The blocked epic shadows leaf even though leaf itself has no deps.
	assertIDs(t, ready, "gate")

	if err := db.SetTaskStatus("gate", models.TaskStatusClosed, ""); err != nil {
		t.Fatalf("close gate: %v", err)
	}
	ready, err = o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready, "epic", "leaf")
}

func TestReadyDescendantsOrdering(t *testing.T) {
	o, db := newTestOrchestrator(t, newFakeGit(), newFakeRunner())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mustCreateTask(t, db, &models.Task{ID: "root", Type: models.TaskTypeEpic, CreatedAt: base})
	// Parent before children, then priority ascending, then creation time.
	mustCreateTask(t, db, &models.Task{ID: "p2-old", ParentID: "root", Priority: 2, CreatedAt: base.Add(1 * time.Minute)})
	mustCreateTask(t, db, &models.Task{ID: "p1", ParentID: "root", Priority: 1, CreatedAt: base.Add(2 * time.Minute)})
	mustCreateTask(t, db, &models.Task{ID: "p2-new", ParentID: "root", Priority: 2, CreatedAt: base.Add(3 * time.Minute)})
	mustCreateTask(t, db, &models.Task{ID: "p1-child", ParentID: "p1", Priority: 9, CreatedAt: base.Add(4 * time.Minute)})

	ready, err := o.resolver.ReadyDescendants("root")
	if err != nil {
		t.Fatalf("ReadyDescendants: %v", err)
	}
	assertIDs(t, ready, "p1", "p1-child", "p2-old", "p2-new")
}
