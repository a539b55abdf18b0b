package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"seconds", 45 * time.Second, "45s"},
		{"minutes", 5 * time.Minute, "5m"},
		{"hours with minutes", time.Hour + 12*time.Minute, "1h12m"},
		{"whole hours", 3 * time.Hour, "3h"},
		{"days", 49 * time.Hour, "2d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.d)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.d, result, tt.expected)
			}
		})
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortCommit() = %q, want %q", got, "01234567")
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("shortCommit() = %q, want %q", got, "abc")
	}
}

func TestImportTask(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pt := planTask{
		ID:    "epic-auth",
		Title: "Authentication epic",
		Children: []planTask{
			{ID: "auth-model", Title: "Add user model"},
			{ID: "auth-api", Title: "Add login endpoint", DependsOn: []string{"auth-model"}},
		},
	}

	count, err := importTask(db, &pt, "")
	if err != nil {
		t.Fatalf("importTask: %v", err)
	}
	if count != 3 {
		t.Errorf("imported %d tasks, want 3", count)
	}

	epic, err := db.GetTask("epic-auth")
	if err != nil || epic == nil {
		t.Fatalf("epic not found: %v", err)
	}
	if epic.Type != models.TaskTypeEpic {
		t.Errorf("epic type = %q, want %q (inferred from children)", epic.Type, models.TaskTypeEpic)
	}

	child, err := db.GetTask("auth-api")
	if err != nil || child == nil {
		t.Fatalf("child not found: %v", err)
	}
	if child.ParentID != "epic-auth" {
		t.Errorf("child parent = %q, want %q", child.ParentID, "epic-auth")
	}
	if child.Type != models.TaskTypeFeature {
		t.Errorf("child type = %q, want %q", child.Type, models.TaskTypeFeature)
	}

	deps, err := db.ListDependencies("auth-api")
	if err != nil {
		t.Fatalf("list dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0].DependsOn != "auth-model" {
		t.Errorf("dependencies = %+v, want one on auth-model", deps)
	}
}

func TestImportTaskRequiresTitle(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pt := planTask{ID: "no-title"}
	if _, err := importTask(db, &pt, ""); err == nil {
		t.Error("expected error for task without title")
	}
}
