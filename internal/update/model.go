package update

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/mellow/internal/commands"
	"github.com/sandeepkv93/mellow/internal/logger"
	"github.com/sandeepkv93/mellow/internal/meetings"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/notify"
	"github.com/sandeepkv93/mellow/internal/scheduler"
	"github.com/sandeepkv93/mellow/internal/snapshot"
	"github.com/sandeepkv93/mellow/internal/views"
)

const (
	maxNotifications = 20
	highlightFor     = 2 * time.Second
)

// Actions runs palette verbs against the store for one day.
type Actions interface {
	Handlers(ctx context.Context, day model.Day) commands.Handlers
}

// Controller is the part of the reconcile controller the view drives.
type Controller interface {
	Resync()
	Pending() []meetings.Pending
}

type Deps struct {
	Context    context.Context
	Day        model.Day
	Actions    Actions
	Controller Controller
	Permission notify.Permission
	Engine     *scheduler.Engine
	Events     <-chan tea.Msg
	Done       <-chan struct{}
	// InApp collects displayed reminders for the notification pane.
	InApp    *notify.Recorder
	Now      func() time.Time
	Location *time.Location
	Log      *slog.Logger
}

type StatusBar struct {
	Text    string
	IsError bool
}

type Model struct {
	deps Deps

	Day               model.Day
	Rows              []snapshot.Entry
	Cursor            int
	Loading           bool
	Highlight         map[string]bool
	highlightGen      int
	Pending           []meetings.Pending
	PermissionGranted bool
	Notifications     []views.NotificationData
	seenInApp         int
	PaletteActive     bool
	HelpVisible       bool
	Status            StatusBar
	LastError         error
	Quitting          bool
	Width             int

	keys         keyMap
	commandInput textinput.Model
	helpModel    help.Model
	spinner      spinner.Model
}

type SnapshotMsg struct {
	Day      model.Day
	Snapshot snapshot.Snapshot
}

type CompletionsMsg struct {
	Keys []string
}

type MeetingsChangedMsg struct {
	Pending []meetings.Pending
}

type FeedErrorMsg struct {
	Err error
}

type ReminderDueMsg struct {
	Event scheduler.Event
}

type ActionResultMsg struct {
	Message string
	Err     error
}

type PermissionResultMsg struct {
	Granted bool
	Err     error
}

type ClearHighlightMsg struct {
	Gen int
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

func NewModel(deps Deps) Model {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}

	input := textinput.New()
	input.Placeholder = "add Write report +work"
	input.Prompt = "> "
	input.CharLimit = 200

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := Model{
		deps:         deps,
		Day:          deps.Day,
		Loading:      true,
		Highlight:    make(map[string]bool),
		keys:         defaultKeyMap(),
		commandInput: input,
		helpModel:    help.New(),
		spinner:      spin,
	}
	if deps.Permission != nil {
		m.PermissionGranted = deps.Permission.Granted()
	}
	return m
}

func (m *Model) notify(title, body, level string) {
	m.Notifications = append(m.Notifications, views.NotificationData{
		At:    m.deps.Now().In(m.deps.Location).Format("15:04"),
		Level: level,
		Title: title,
		Body:  body,
	})
	if len(m.Notifications) > maxNotifications {
		m.Notifications = m.Notifications[len(m.Notifications)-maxNotifications:]
	}
}

// collectInApp moves reminders shown since the last call into the
// notification pane.
func (m *Model) collectInApp() {
	if m.deps.InApp == nil {
		return
	}
	items := m.deps.InApp.Items()
	if m.seenInApp > len(items) {
		m.seenInApp = 0
	}
	for _, n := range items[m.seenInApp:] {
		m.notify(n.Title, n.Body, "reminder")
	}
	m.seenInApp = len(items)
}

func (m Model) waitForEvent() tea.Cmd {
	return waitForEventCmd(m.deps.Events, m.deps.Done)
}

func waitForReminderCmd(ch <-chan scheduler.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ReminderDueMsg{Event: ev}
	}
}

func levelFromError(isError bool) string {
	if isError {
		return "error"
	}
	return "info"
}
