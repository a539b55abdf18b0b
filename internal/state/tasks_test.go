package state

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/pkg/models"
)

func TestTaskCRUD(t *testing.T) {
	db := setupTestDB(t)

	task := &models.Task{
		ID:        "t1",
		Title:     "Implement parser",
		Status:    models.TaskStatusOpen,
		Priority:  2,
		Type:      models.TaskTypeFeature,
		CreatedAt: time.Now(),
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got == nil {
		t.Fatal("expected task, got nil")
	}
	if got.Title != "Implement parser" || got.Priority != 2 {
		t.Errorf("unexpected task: %+v", got)
	}

	got.Title = "Implement tokenizer"
	got.Status = models.TaskStatusInProgress
	if err := db.UpdateTask(got); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	got2, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask after update: %v", err)
	}
	if got2.Title != "Implement tokenizer" || got2.Status != models.TaskStatusInProgress {
		t.Errorf("update not persisted: %+v", got2)
	}
}

func TestGetTaskMissing(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetTask("missing")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing task, got %+v", got)
	}
}

func TestSetTaskStatusTerminalRecordsCloseTime(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateTask(&models.Task{ID: "t1", Title: "x"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := db.SetTaskStatus("t1", models.TaskStatusClosed, "done"); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	got, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != models.TaskStatusClosed {
		t.Errorf("status = %s, want closed", got.Status)
	}
	if got.ClosedAt == nil {
		t.Errorf("closed_at not recorded")
	}
	if got.CloseReason != "done" {
		t.Errorf("close_reason = %q, want %q", got.CloseReason, "done")
	}
}

func TestSetTaskStatusRejectsUnknownStatus(t *testing.T) {
	db := setupTestDB(t)

	if err := db.SetTaskStatus("t1", models.TaskStatus("bogus"), ""); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestCloseTaskWithOpenChildren(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateTask(&models.Task{ID: "parent", Title: "epic", Type: models.TaskTypeEpic}); err != nil {
		t.Fatalf("CreateTask parent: %v", err)
	}
	if err := db.CreateTask(&models.Task{ID: "child", ParentID: "parent", Title: "child"}); err != nil {
		t.Fatalf("CreateTask child: %v", err)
	}

	err := db.CloseTask("parent", false)
	if !errors.Is(err, ErrOpenChildren) {
		t.Fatalf("expected ErrOpenChildren, got %v", err)
	}

	// Force close ignores open children.
	if err := db.CloseTask("parent", true); err != nil {
		t.Fatalf("forced CloseTask: %v", err)
	}

	got, _ := db.GetTask("parent")
	if got.Status != models.TaskStatusClosed {
		t.Errorf("status = %s, want closed", got.Status)
	}
}

func TestListChildrenOrderedByCreation(t *testing.T) {
	db := setupTestDB(t)

	base := time.Now()
	if err := db.CreateTask(&models.Task{ID: "parent", Title: "epic"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	for i, id := range []string{"c1", "c2", "c3"} {
		task := &models.Task{
			ID:        id,
			ParentID:  "parent",
			Title:     id,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("CreateTask %s: %v", id, err)
		}
	}

	children, err := db.ListChildren("parent")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for i, id := range []string{"c1", "c2", "c3"} {
		if children[i].ID != id {
			t.Errorf("children[%d].ID = %s, want %s", i, children[i].ID, id)
		}
	}
}

func TestDependencies(t *testing.T) {
	db := setupTestDB(t)

	dep := &models.Dependency{TaskID: "t2", DependsOn: "t1"}
	if err := db.CreateDependency(dep); err != nil {
		t.Fatalf("CreateDependency: %v", err)
	}
	// Duplicate insert is ignored.
	if err := db.CreateDependency(dep); err != nil {
		t.Fatalf("CreateDependency duplicate: %v", err)
	}

	deps, err := db.ListDependencies("t2")
	if err != nil {
		t.Fatalf("ListDependencies: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(deps))
	}
	if deps[0].DependsOn != "t1" || deps[0].Kind != models.DependencyBlocks {
		t.Errorf("unexpected dependency: %+v", deps[0])
	}
}
