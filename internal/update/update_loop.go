package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/views"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.waitForEvent()}
	if m.deps.Engine != nil {
		cmds = append(cmds, waitForReminderCmd(m.deps.Engine.C()))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.PaletteActive {
			if typed.String() == "ctrl+c" {
				m.Quitting = true
				return m, tea.Quit
			}
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case tea.WindowSizeMsg:
		m.Width = typed.Width
		m.helpModel.Width = typed.Width
		return m, nil
	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case SnapshotMsg:
		m.Day = typed.Day
		m.Rows = typed.Snapshot.Entries()
		m.Loading = false
		if m.Cursor >= len(m.Rows) {
			m.Cursor = len(m.Rows) - 1
		}
		if m.Cursor < 0 {
			m.Cursor = 0
		}
		return m, m.waitForEvent()
	case CompletionsMsg:
		m.highlightGen++
		m.Highlight = make(map[string]bool, len(typed.Keys))
		names := make([]string, 0, len(typed.Keys))
		for _, k := range typed.Keys {
			m.Highlight[k] = true
			names = append(names, m.nameOf(k))
		}
		m.Status = StatusBar{Text: "completed: " + strings.Join(names, ", ")}
		m.notify("Completed", strings.Join(names, ", "), "success")
		gen := m.highlightGen
		clearCmd := tea.Tick(highlightFor, func(time.Time) tea.Msg { return ClearHighlightMsg{Gen: gen} })
		return m, tea.Batch(clearCmd, m.waitForEvent())
	case ClearHighlightMsg:
		if typed.Gen == m.highlightGen {
			m.Highlight = make(map[string]bool)
		}
		return m, nil
	case MeetingsChangedMsg:
		m.Pending = typed.Pending
		if m.deps.Permission != nil {
			m.PermissionGranted = m.deps.Permission.Granted()
		}
		return m, m.waitForEvent()
	case FeedErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: "feed: " + typed.Err.Error(), IsError: true}
		}
		return m, m.waitForEvent()
	case ReminderDueMsg:
		typed.Event.Fire()
		m.collectInApp()
		if m.deps.Controller != nil {
			m.Pending = m.deps.Controller.Pending()
		}
		if m.deps.Engine != nil {
			return m, waitForReminderCmd(m.deps.Engine.C())
		}
		return m, nil
	case ActionResultMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.notify("Command Failed", typed.Err.Error(), "error")
			return m, nil
		}
		m.Status = StatusBar{Text: typed.Message}
		return m, nil
	case PermissionResultMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: "notifications: " + typed.Err.Error(), IsError: true}
			return m, nil
		}
		m.PermissionGranted = typed.Granted
		if typed.Granted {
			m.Status = StatusBar{Text: "notifications enabled"}
		} else {
			m.Status = StatusBar{Text: "notifications not allowed", IsError: true}
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		m.notify("Status", typed.Text, levelFromError(typed.IsError))
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.notify("Error", typed.Err.Error(), "error")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Palette):
		return m.openPalette(), nil
	case key.Matches(msg, m.keys.Help):
		m.HelpVisible = !m.HelpVisible
		m.helpModel.ShowAll = m.HelpVisible
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.Cursor < len(m.Rows)-1 {
			m.Cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Start):
		return m, m.setSelectedStatus(model.StatusInProgress)
	case key.Matches(msg, m.keys.Done):
		return m, m.setSelectedStatus(model.StatusCompleted)
	case key.Matches(msg, m.keys.Cancel):
		return m, m.setSelectedStatus(model.StatusCancelled)
	case key.Matches(msg, m.keys.Permission):
		return m, m.requestPermission()
	}
	return m, nil
}

// requestPermission prompts once and, on a grant, reconciles the current
// snapshot again so meetings skipped so far get their reminders.
func (m Model) requestPermission() tea.Cmd {
	perm := m.deps.Permission
	if perm == nil {
		return nil
	}
	ctrl := m.deps.Controller
	ctx := m.deps.Context
	return func() tea.Msg {
		granted, err := perm.Request(ctx)
		if err == nil && granted && ctrl != nil {
			ctrl.Resync()
		}
		return PermissionResultMsg{Granted: granted, Err: err}
	}
}

func (m Model) nameOf(k string) string {
	for _, e := range m.Rows {
		if e.Key == k {
			return e.Task.Name
		}
	}
	return k
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	status := m.Status.Text
	if m.Status.IsError && status != "" {
		status = "error: " + status
	}

	right := views.RenderRemindersPanel(views.RemindersPanelData{
		PermissionGranted: m.PermissionGranted,
		Rows:              m.reminderRows(),
	})
	right += views.RenderCommandPalette(m.PaletteActive, m.commandInput.View())

	notifications := m.Notifications
	if len(notifications) > 5 {
		notifications = notifications[len(notifications)-5:]
	}

	done := 0
	for _, e := range m.Rows {
		if e.Task.IsCompleted() {
			done++
		}
	}
	next := ""
	if len(m.Pending) > 0 {
		p := m.Pending[0]
		next = fmt.Sprintf("%s %s", p.MeetingTime.In(m.deps.Location).Format("15:04"), p.TaskName)
	}

	return views.RenderApp(views.AppData{
		Day:          string(m.Day),
		Total:        len(m.Rows),
		Done:         done,
		JustDone:     len(m.Highlight),
		NextReminder: next,
		Width:        m.Width,
		Tasks: views.RenderTaskPanel(views.TaskPanelData{
			Day:     string(m.Day),
			Rows:    m.taskRows(),
			Loading: m.Loading,
			Spinner: m.spinner.View(),
		}),
		Side:        right,
		Status:      status,
		StatusError: m.Status.IsError,
		Log:         views.RenderNotifications(notifications),
		Help:        m.helpModel.View(m.keys),
	})
}

func (m Model) taskRows() []views.TaskRowData {
	rows := make([]views.TaskRowData, 0, len(m.Rows))
	for i, e := range m.Rows {
		when := ""
		if at, ok := e.Task.MeetingTime(); ok {
			when = at.In(m.deps.Location).Format("15:04")
		}
		rows = append(rows, views.TaskRowData{
			Key:       e.Key,
			Name:      e.Task.Name,
			Status:    string(e.Task.Status),
			When:      when,
			Subtask:   e.IsSubtask(),
			Selected:  i == m.Cursor,
			Highlight: m.Highlight[e.Key],
		})
	}
	return rows
}

func (m Model) reminderRows() []views.ReminderRowData {
	rows := make([]views.ReminderRowData, 0, len(m.Pending))
	for _, p := range m.Pending {
		rows = append(rows, views.ReminderRowData{
			Name:      p.TaskName,
			MeetingAt: p.MeetingTime.In(m.deps.Location).Format("15:04"),
			NotifyAt:  p.NotifyAt.In(m.deps.Location).Format("15:04"),
		})
	}
	return rows
}
