package review

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/foreman/pkg/models"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestNewClientDefaultsModel(t *testing.T) {
	c, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Model() == "" {
		t.Error("expected a default model")
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"APPROVED: clean, focused change", true},
		{"  APPROVED: fine", true},
		{"REJECTED: 1. no tests", false},
		{"The change looks APPROVED to me", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := parseVerdict(tt.text); got != tt.want {
			t.Errorf("parseVerdict(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestBuildReviewPrompt(t *testing.T) {
	task := &models.Task{
		ID:          "t1",
		Title:       "Add retry logic",
		Description: "Retry transient failures up to 3 times.",
	}
	prompt := buildReviewPrompt(task, "diff --git a/retry.go b/retry.go")

	for _, want := range []string{"Add retry logic", "Retry transient failures", "diff --git", "APPROVED", "REJECTED"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestTokenTracker(t *testing.T) {
	tr := NewTokenTracker()
	tr.Add(100, 50)
	tr.Add(10, 5)

	in, out := tr.Total()
	if in != 110 || out != 55 {
		t.Errorf("Total() = %d/%d, want 110/55", in, out)
	}
	if tr.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", tr.Calls())
	}
}
