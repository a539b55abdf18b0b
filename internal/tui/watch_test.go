package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/foreman/pkg/models"
)

func testSnapshot() Snapshot {
	st := models.NewOrchestrationState("sess-1")
	st.Spawned = []models.SpawnedAgent{
		{SessionID: "w1", TaskID: "t-run", WorktreeID: "wt1", SpawnedAt: time.Now().Add(-90 * time.Second)},
	}
	st.Completed = []models.CompletedAgent{
		{SpawnedAgent: models.SpawnedAgent{SessionID: "w2", TaskID: "t-done"}, ClosedCommit: "abcdef0123456789"},
	}
	st.Failed = []models.FailedAgent{
		{SpawnedAgent: models.SpawnedAgent{SessionID: "w3", TaskID: "t-fail"}, Reason: "worker exited before starting work"},
	}
	return Snapshot{
		SessionID: "sess-1",
		State:     st,
		Tasks: map[string]*models.Task{
			"t-run": {ID: "t-run", Title: "implement parser"},
		},
	}
}

func TestWatchViewSections(t *testing.T) {
	w := NewWatch(func() Snapshot { return testSnapshot() }, time.Second)

	model, _ := w.Update(snapshotMsg(testSnapshot()))
	w = model.(*Watch)

	view := w.View()
	for _, want := range []string{
		"Running (1)", "t-run", "implement parser",
		"Completed (1)", "abcdef01",
		"Failed (1)", "worker exited before starting work",
		"Reviewed (0)",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestWatchQuitKeys(t *testing.T) {
	w := NewWatch(func() Snapshot { return Snapshot{} }, time.Second)

	model, cmd := w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	w = model.(*Watch)
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if w.View() != "" {
		t.Error("quitting view should be empty")
	}
}

func TestHumanSince(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{72 * time.Minute, "1h12m"},
	}

	for _, tt := range tests {
		got := humanSince(time.Now().Add(-tt.age))
		if got != tt.want {
			t.Errorf("humanSince(%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("abcdef0123456789"); got != "abcdef01" {
		t.Errorf("shortCommit = %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("shortCommit short input = %q", got)
	}
}
