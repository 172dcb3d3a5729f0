package views

import (
	"fmt"
	"strings"
)

type TaskRowData struct {
	Key       string
	Name      string
	Status    string
	When      string
	Subtask   bool
	Selected  bool
	Highlight bool
}

type TaskPanelData struct {
	Day     string
	Rows    []TaskRowData
	Loading bool
	Spinner string
}

type ReminderRowData struct {
	Name      string
	MeetingAt string
	NotifyAt  string
}

type RemindersPanelData struct {
	PermissionGranted bool
	Rows              []ReminderRowData
}

type NotificationData struct {
	At    string
	Level string
	Title string
	Body  string
}

func RenderTaskPanel(data TaskPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("tasks for %s:\n", data.Day))
	if data.Loading {
		b.WriteString(data.Spinner + " loading")
		return b.String()
	}
	if len(data.Rows) == 0 {
		b.WriteString("(no tasks, press / and type: add <name>)")
		return b.String()
	}
	for _, row := range data.Rows {
		cursor := " "
		if row.Selected {
			cursor = ">"
		}
		indent := ""
		if row.Subtask {
			indent = "  "
		}
		line := fmt.Sprintf("%s %s%s %s", cursor, indent, statusBadge(row.Status), row.Name)
		if row.When != "" {
			line += " @" + row.When
		}
		switch {
		case row.Highlight:
			line = highlightStyle.Render(line + " ✓")
		case row.Status == "COMPLETED" || row.Status == "CANCELLED":
			line = dimStyle.Render(line)
		case row.Status == "MEETING":
			line = meetingStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderRemindersPanel(data RemindersPanelData) string {
	var b strings.Builder
	b.WriteString("reminders:\n")
	if !data.PermissionGranted {
		b.WriteString("notifications off, press [p] to enable\n")
	}
	if len(data.Rows) == 0 {
		b.WriteString("(none pending)")
		return b.String()
	}
	for _, row := range data.Rows {
		b.WriteString(fmt.Sprintf("%s %s (alert %s)\n", row.MeetingAt, row.Name, row.NotifyAt))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderNotifications(items []NotificationData) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("notifications:\n")
	for _, n := range items {
		b.WriteString(fmt.Sprintf("%s [%s] %s", n.At, strings.ToUpper(n.Level), n.Title))
		if n.Body != "" {
			b.WriteString(": " + n.Body)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderCommandPalette(active bool, inputView string) string {
	if !active {
		return ""
	}
	return "\ncommand:\n" + inputView + "\n" + dimStyle.Render("add, sub, start, done, cancel, meet, project")
}

func statusBadge(status string) string {
	switch status {
	case "COMPLETED":
		return "[x]"
	case "IN_PROGRESS":
		return "[~]"
	case "CANCELLED":
		return "[-]"
	case "MEETING":
		return "[M]"
	default:
		return "[ ]"
	}
}
