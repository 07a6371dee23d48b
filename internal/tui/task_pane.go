package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/dispatch/internal/events"
)

// TaskState is what the pane knows about one task, accumulated from events.
type TaskState struct {
	TaskID      string
	WorkerClass string
	Status      string // "running", "retrying", "completed", "failed", "skipped"
	Attempt     int
	Log         []string
	StartTime   time.Time
	Duration    time.Duration
}

// TaskPaneModel shows the task list on the left and the selected task's
// event log in a scrollable viewport on the right.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // first-seen order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// track returns the state for a task, creating the row on first sight.
func (m *TaskPaneModel) track(taskID string) *TaskState {
	if state, exists := m.tasks[taskID]; exists {
		return state
	}
	state := &TaskState{TaskID: taskID, Status: "pending"}
	m.tasks[taskID] = state
	m.taskOrder = append(m.taskOrder, taskID)
	if len(m.taskOrder) == 1 {
		m.selectedIdx = 0
	}
	return state
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.refreshViewport()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.refreshViewport()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		state := m.track(msg.ID)
		state.WorkerClass = msg.WorkerClass
		state.Status = "running"
		state.Attempt = msg.Attempt
		if state.StartTime.IsZero() {
			state.StartTime = msg.Timestamp
		}
		state.Log = append(state.Log, fmt.Sprintf("[attempt %d] started (%s)", msg.Attempt, msg.WorkerClass))
		m.refreshIfSelected(msg.ID)

	case events.TaskRetryingEvent:
		state := m.track(msg.ID)
		state.Status = "retrying"
		state.Log = append(state.Log, fmt.Sprintf("[attempt %d] failed, retrying in %s: %v", msg.Attempt, msg.Delay, msg.Err))
		m.refreshIfSelected(msg.ID)

	case events.TaskTimedOutEvent:
		state := m.track(msg.ID)
		state.Log = append(state.Log, fmt.Sprintf("reclaimed after %s timeout", msg.After))
		m.refreshIfSelected(msg.ID)

	case events.TaskCompletedEvent:
		state := m.track(msg.ID)
		state.Status = "completed"
		state.Duration = msg.Duration
		if msg.Output != "" {
			state.Log = append(state.Log, msg.Output)
		}
		state.Log = append(state.Log, fmt.Sprintf("[completed in %v after %d attempt(s)]", msg.Duration, msg.Attempts))
		m.refreshIfSelected(msg.ID)

	case events.TaskFailedEvent:
		state := m.track(msg.ID)
		state.Status = "failed"
		state.Log = append(state.Log, fmt.Sprintf("[failed permanently: %v]", msg.Err))
		m.refreshIfSelected(msg.ID)

	case events.TaskSkippedEvent:
		state := m.track(msg.ID)
		state.Status = "skipped"
		state.Log = append(state.Log, fmt.Sprintf("[skipped: upstream %s failed]", msg.UpstreamID))
		m.refreshIfSelected(msg.ID)
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 28
	logWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(logWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, taskID := range m.taskOrder {
			state := m.tasks[taskID]
			name := taskID
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", statusIcon(state.Status), name)
			if i == m.selectedIdx {
				line = StyleSelected.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// statusIcon returns a styled status indicator.
func statusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "retrying":
		return StyleStatusRetrying.Render("↻")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed", "skipped":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// selectedTaskID returns the task ID of the currently selected row.
func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

func (m *TaskPaneModel) refreshIfSelected(taskID string) {
	if m.selectedTaskID() == taskID {
		m.refreshViewport()
	}
}

// refreshViewport fills the viewport with the selected task's event log.
func (m *TaskPaneModel) refreshViewport() {
	taskID := m.selectedTaskID()
	state, exists := m.tasks[taskID]
	if taskID == "" || !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	m.viewport.SetContent(strings.Join(state.Log, "\n"))
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	logWidth := m.width - 28 - 4
	logHeight := m.height - 4

	if logWidth < 10 {
		logWidth = 10
	}
	if logHeight < 5 {
		logHeight = 5
	}
	m.viewport.Width = logWidth
	m.viewport.Height = logHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
