package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// AppData is one frame of the day view. Width is the terminal width; zero
// means it is not known yet.
type AppData struct {
	Day          string
	Total        int
	Done         int
	JustDone     int
	NextReminder string
	Width        int
	Tasks        string
	Side         string
	Status       string
	StatusError  bool
	Log          string
	Help         string
}

const (
	defaultWidth  = 100
	minTasksWidth = 40
	minSideWidth  = 36
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	logStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false).BorderForeground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	meetingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

func RenderApp(data AppData) string {
	tasksWidth, sideWidth := paneWidths(data.Width)
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Width(tasksWidth).Render(data.Tasks),
		panelStyle.Width(sideWidth).Render(data.Side),
	)

	lines := []string{renderHeader(data), panes}
	if data.Status != "" {
		style := statusStyle
		if data.StatusError {
			style = errorStyle
		}
		lines = append(lines, style.Render(data.Status))
	}
	if data.Log != "" {
		lines = append(lines, logStyle.Render(data.Log))
	}
	if data.Help != "" {
		lines = append(lines, dimStyle.Render(data.Help))
	}
	return strings.Join(lines, "\n")
}

func renderHeader(data AppData) string {
	parts := []string{
		headerStyle.Render("mellow " + data.Day),
		dimStyle.Render(fmt.Sprintf("%d/%d done", data.Done, data.Total)),
	}
	if data.JustDone > 0 {
		parts = append(parts, highlightStyle.Render(fmt.Sprintf("✓ %d just completed", data.JustDone)))
	}
	if data.NextReminder != "" {
		parts = append(parts, meetingStyle.Render("next: "+data.NextReminder))
	}
	return strings.Join(parts, "  ")
}

// paneWidths splits the terminal roughly 3:2 between the task list and the
// side pane. Each pane adds two border columns.
func paneWidths(total int) (int, int) {
	if total <= 0 {
		total = defaultWidth
	}
	usable := total - 4
	tasks := usable * 3 / 5
	if tasks < minTasksWidth {
		tasks = minTasksWidth
	}
	side := usable - tasks
	if side < minSideWidth {
		side = minSideWidth
	}
	return tasks, side
}

// RenderMarkdown renders md for a terminal, falling back to the raw text.
func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	out, err := glamour.Render(md, "dark")
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
