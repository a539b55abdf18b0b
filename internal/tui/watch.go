// Package tui provides the terminal user interface for foreman status --watch.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// Snapshot is one refresh of orchestration status.
type Snapshot struct {
	// SessionID is the orchestrating session being watched.
	SessionID string
	// State is the orchestration state document.
	State *models.OrchestrationState
	// Tasks maps task ids to their current records.
	Tasks map[string]*models.Task
	// Err is a fetch error, shown without killing the watch.
	Err error
}

// Fetcher produces status snapshots for the watch loop.
type Fetcher func() Snapshot

// snapshotMsg delivers a fresh snapshot to the model.
type snapshotMsg Snapshot

// tickMsg schedules the next refresh.
type tickMsg time.Time

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Watch is the bubbletea model for live orchestration status.
type Watch struct {
	fetch    Fetcher
	interval time.Duration
	spinner  spinner.Model
	snap     Snapshot
	width    int
	quitting bool
}

// NewWatch creates a Watch refreshing through fetch every interval.
func NewWatch(fetch Fetcher, interval time.Duration) *Watch {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	return &Watch{
		fetch:    fetch,
		interval: interval,
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.refresh, w.tick())
}

// refresh fetches a snapshot off the Update loop.
func (w *Watch) refresh() tea.Msg {
	return snapshotMsg(w.fetch())
}

func (w *Watch) tick() tea.Cmd {
	return tea.Tick(w.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			w.quitting = true
			return w, tea.Quit
		case "r":
			return w, w.refresh
		}

	case tea.WindowSizeMsg:
		w.width = msg.Width

	case snapshotMsg:
		w.snap = Snapshot(msg)

	case tickMsg:
		return w, tea.Batch(w.refresh, w.tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}

	return w, nil
}

// View implements tea.Model.
func (w *Watch) View() string {
	if w.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("foreman status"))
	if w.snap.SessionID != "" {
		b.WriteString(dimStyle.Render("  session " + w.snap.SessionID))
	}
	b.WriteString("\n\n")

	if w.snap.Err != nil {
		b.WriteString(failedStyle.Render(fmt.Sprintf("refresh error: %v", w.snap.Err)))
		b.WriteString("\n\n")
	}

	st := w.snap.State
	if st == nil {
		b.WriteString(w.spinner.View())
		b.WriteString(" loading...\n")
		return b.String()
	}

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Running (%d)", len(st.Spawned))))
	b.WriteString("\n")
	if len(st.Spawned) == 0 {
		b.WriteString(dimStyle.Render("  none"))
		b.WriteString("\n")
	}
	for _, a := range st.Spawned {
		b.WriteString("  ")
		b.WriteString(w.spinner.View())
		b.WriteString(runningStyle.Render(" " + a.TaskID))
		b.WriteString(dimStyle.Render("  " + w.taskTitle(a.TaskID) + "  up " + humanSince(a.SpawnedAt)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Completed (%d)", len(st.Completed))))
	b.WriteString("\n")
	for _, a := range st.Completed {
		line := fmt.Sprintf("  %s %s", doneStyle.Render("✓"), a.TaskID)
		if a.ClosedCommit != "" {
			line += dimStyle.Render("  " + shortCommit(a.ClosedCommit))
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Reviewed (%d)", len(st.Reviewed))))
	b.WriteString("\n")
	for _, a := range st.Reviewed {
		b.WriteString(fmt.Sprintf("  %s %s %s\n", doneStyle.Render("▸"), a.TaskID, dimStyle.Render(a.Branch)))
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Failed (%d)", len(st.Failed))))
	b.WriteString("\n")
	for _, a := range st.Failed {
		b.WriteString(fmt.Sprintf("  %s %s %s\n", failedStyle.Render("✗"), a.TaskID, dimStyle.Render(a.Reason)))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (w *Watch) taskTitle(taskID string) string {
	if t, ok := w.snap.Tasks[taskID]; ok && t != nil {
		return t.Title
	}
	return ""
}

// humanSince renders an age like "3m" or "1h12m".
func humanSince(t time.Time) string {
	d := time.Since(t).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
