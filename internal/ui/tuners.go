package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tunerwatch/internal/mirakurun"
)

var tunerColumns = []string{"#", "Name", "Types", "State", "Command", "Users"}

type killResultMsg struct {
	index  int
	result *mirakurun.KillResult
	err    error
}

// tunerRow returns the table cells for one tuner.
func tunerRow(t mirakurun.Tuner) []string {
	users := strings.Join(t.UserLabels(), ", ")
	if users == "" {
		users = "-"
	}
	return []string{
		strconv.Itoa(t.Index),
		t.Name,
		t.TypesLabel(),
		tunerState(t),
		t.CommandLabel(),
		users,
	}
}

func tunerState(t mirakurun.Tuner) string {
	switch {
	case t.IsFault:
		return "fault"
	case t.InUse():
		return "in use"
	case t.IsUsing:
		return "idle use"
	case t.IsFree:
		return "free"
	case !t.IsAvailable:
		return "unavailable"
	default:
		return "-"
	}
}

func (m Model) renderTuners() string {
	styles := m.theme.Styles()
	tuners := m.snapshot.Tuners
	if !m.snapshot.HasTuners && len(tuners) == 0 {
		return styles.MutedText.Render("No tuner data yet. Press p to set the server address.")
	}

	rows := make([][]string, len(tuners))
	widths := make([]int, len(tunerColumns))
	for i, col := range tunerColumns {
		widths[i] = lipgloss.Width(col)
	}
	for i, t := range tuners {
		rows[i] = tunerRow(t)
		for j, cell := range rows[i] {
			if w := lipgloss.Width(cell); w > widths[j] {
				widths[j] = w
			}
		}
	}
	fitColumns(widths, m.contentWidth()-2)

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(formatRow(tunerColumns, widths)))
	for i, row := range rows {
		b.WriteString("\n")
		line := formatRow(row, widths)
		switch {
		case i == m.selected:
			b.WriteString(styles.Selected.Render(line))
		case tuners[i].IsFault:
			b.WriteString(styles.DangerText.Render(line))
		case tuners[i].InUse():
			b.WriteString(styles.Text.Render(line))
		default:
			b.WriteString(styles.MutedText.Render(line))
		}
	}
	if !m.snapshot.LastUpdated.IsZero() {
		b.WriteString("\n\n")
		b.WriteString(styles.FaintText.Render("updated " + m.snapshot.LastUpdated.Format("15:04:05")))
	}
	return b.String()
}

// fitColumns shrinks the widest columns until the row fits in total.
func fitColumns(widths []int, total int) {
	sum := func() int {
		n := 0
		for _, w := range widths {
			n += w + 2
		}
		return n
	}
	for sum() > total {
		widest := 0
		for i, w := range widths {
			if w > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 4 {
			return
		}
		widths[widest]--
	}
}

func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		cell = truncate(cell, widths[i])
		b.WriteString(cell)
		if pad := widths[i] - lipgloss.Width(cell); pad > 0 && i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	return b.String()
}

// truncate shortens value to limit runes, adding an ellipsis.
func truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func (m *Model) clampSelection() {
	n := len(m.snapshot.Tuners)
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m Model) handleTunersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.snapshot.Tuners)
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < n-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = max(n-1, 0)
	case key.Matches(msg, m.keys.Refresh):
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
	case key.Matches(msg, m.keys.Kill):
		if m.selected >= n {
			return m, nil
		}
		tuner := m.snapshot.Tuners[m.selected]
		if strings.TrimSpace(tuner.Command) == "" {
			m.setNotice(fmt.Sprintf("tuner #%d has no running command", tuner.Index), true)
			return m, nil
		}
		m.modal = killModal{tuner: tuner.Clone(), kill: m.killCmd(tuner.Index)}
	}
	return m, nil
}

func (m Model) killCmd(index int) tea.Cmd {
	if m.admin == nil {
		return nil
	}
	ctx, admin := m.ctx, m.admin
	return func() tea.Msg {
		client, err := admin()
		if err != nil {
			return killResultMsg{index: index, err: err}
		}
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		result, err := client.KillTunerProcess(ctx, index)
		return killResultMsg{index: index, result: result, err: err}
	}
}

func killNotice(msg killResultMsg) string {
	if msg.result != nil && msg.result.PID > 0 {
		return fmt.Sprintf("killed tuner #%d process (pid %d)", msg.index, msg.result.PID)
	}
	return fmt.Sprintf("killed tuner #%d process", msg.index)
}

// killModal asks for confirmation before killing a tuner's process.
type killModal struct {
	tuner mirakurun.Tuner
	kill  tea.Cmd
}

func (k killModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return k, nil, false
	}
	switch {
	case key.Matches(keyMsg, keys.Confirm):
		return k, k.kill, true
	case key.Matches(keyMsg, keys.Cancel):
		return k, nil, true
	}
	return k, nil, false
}

func (k killModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	body := strings.Join([]string{
		styles.DangerText.Render("Kill tuner process?"),
		"",
		styles.Text.Render(fmt.Sprintf("#%d %s", k.tuner.Index, k.tuner.Name)),
		styles.MutedText.Render(truncate(k.tuner.CommandLabel(), 50)),
		"",
		styles.FaintText.Render("y/enter confirm  •  esc cancel"),
	}, "\n")
	return styles.Modal.Width(min(60, max(width-4, 20))).Render(body)
}
