package update

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/mellow/internal/commands"
	"github.com/sandeepkv93/mellow/internal/model"
)

func (m Model) openPalette() Model {
	m.PaletteActive = true
	m.commandInput.SetValue("")
	m.commandInput.Focus()
	m.Status = StatusBar{Text: "command palette active"}
	return m
}

func (m Model) closePalette() Model {
	m.PaletteActive = false
	m.commandInput.SetValue("")
	m.commandInput.Blur()
	return m
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m = m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		raw := strings.TrimSpace(m.commandInput.Value())
		m = m.closePalette()
		cmd, err := commands.Parse(raw)
		if err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			return m, nil
		}
		return m, m.runCommand(cmd)
	}
	if msg.Type == tea.KeyRunes {
		m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
		return m, nil
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	return m, cmd
}

// runCommand executes off the update loop; the store write comes back to the
// view through the feed, the outcome through ActionResultMsg.
func (m Model) runCommand(cmd commands.Command) tea.Cmd {
	if m.deps.Actions == nil {
		return func() tea.Msg {
			return ActionResultMsg{Err: &commands.CommandError{Code: commands.ErrCodeHandlerMissing, Message: "no store attached"}}
		}
	}
	actions := m.deps.Actions
	ctx := m.deps.Context
	day := m.Day
	log := m.deps.Log
	return func() tea.Msg {
		res, err := commands.Execute(cmd, actions.Handlers(ctx, day))
		if err != nil {
			log.Warn("command failed", "command", cmd.Raw, "error", err)
		}
		return ActionResultMsg{Message: res.Message, Err: err}
	}
}

func (m Model) setSelectedStatus(status model.Status) tea.Cmd {
	if m.Cursor < 0 || m.Cursor >= len(m.Rows) {
		return nil
	}
	entry := m.Rows[m.Cursor]
	target := commands.Target{Task: entry.Task.ID}
	if entry.IsSubtask() {
		target = commands.Target{Task: entry.ParentID, Sub: entry.Task.ID}
	}
	typ := commands.TypeStart
	switch status {
	case model.StatusCompleted:
		typ = commands.TypeDone
	case model.StatusCancelled:
		typ = commands.TypeCancel
	}
	return m.runCommand(commands.Command{
		Type:   typ,
		Raw:    string(typ) + " " + target.String(),
		Status: &commands.StatusArgs{Target: target, Status: status},
	})
}
