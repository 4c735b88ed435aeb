package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tunerwatch/internal/logstream"
)

func (m *Model) handleLogs(msg LogMsg) {
	m.logEnded = false
	m.logTotal = msg.Total
	if m.logs != nil {
		m.logEntries = m.logs.Entries()
	} else {
		m.logEntries = append(m.logEntries, msg.Entries...)
		if over := len(m.logEntries) - logstream.DefaultCapacity; over > 0 {
			m.logEntries = append([]logstream.Entry(nil), m.logEntries[over:]...)
		}
	}
	m.renderLogViewport()
}

// renderLogViewport refreshes the viewport content from the entries.
func (m *Model) renderLogViewport() {
	if !m.ready {
		return
	}
	m.logViewport.SetContent(colorizeEntries(m.logEntries, m.theme.Styles(), m.logViewport.Width))
	if m.follow {
		m.logViewport.GotoBottom()
	}
}

func colorizeEntries(entries []logstream.Entry, styles Styles, width int) string {
	if len(entries) == 0 {
		return styles.MutedText.Render("Waiting for server log...")
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		text := e.Text
		if width > 0 {
			text = truncate(text, width)
		}
		lines[i] = styles.LevelStyle(e.Level).Render(text)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderLogs() string {
	view := m.logViewport.View()
	if m.logEnded {
		styles := m.theme.Styles()
		view += "\n" + styles.WarningText.Render("log stream ended, reconnecting...")
	}
	return view
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.logViewport.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.follow = false
		m.logViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.follow = true
		m.logViewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.follow = false
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	if m.logViewport.AtBottom() {
		m.follow = true
	}
	return m, cmd
}
