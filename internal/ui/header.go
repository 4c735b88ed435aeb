package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tunerwatch/internal/mirakurun"
	"github.com/five82/tunerwatch/internal/state"
)

const requestTimeout = 5 * time.Second

type serverStatusMsg struct {
	status *mirakurun.Status
	err    error
}

// renderHeader renders the logo, connection indicator, endpoint and server
// summary on one line.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()

	parts := []string{
		styles.Logo.Render("tunerwatch"),
		m.renderIndicator(styles),
	}
	if m.settings != nil {
		host, port := m.settings.Endpoint()
		endpoint := "not configured"
		if host != "" || port != "" {
			endpoint = host + ":" + port
		}
		parts = append(parts, styles.MutedText.Render(endpoint))
	}
	if m.server != "" {
		parts = append(parts, styles.FaintText.Render(m.server))
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderIndicator(styles Styles) string {
	label := m.label
	if label == "" {
		label = state.LabelUnknown
	}
	switch m.conn {
	case state.Connecting:
		return m.spinner.View() + " " + styles.WarningText.Render(label)
	case state.Connected:
		if label == state.Active.String() {
			return styles.SuccessText.Render("● " + label)
		}
		return styles.InfoText.Render("○ " + label)
	case state.Error:
		return styles.DangerText.Render("● " + label)
	default:
		return styles.FaintText.Render("○ " + label)
	}
}

func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	titles := []string{
		"Tuners",
		fmt.Sprintf("Logs (%d)", m.logTotal),
		"Version",
	}
	rendered := make([]string, len(titles))
	for i, title := range titles {
		if View(i) == m.view {
			rendered[i] = styles.TabActive.Render(title)
		} else {
			rendered[i] = styles.Tab.Render(title)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.notice != "" {
		style := styles.SuccessText
		if m.noticeBad {
			style = styles.DangerText
		}
		return styles.Footer.Width(m.width).Render(style.Render(m.notice))
	}

	var hints []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	return styles.Footer.Width(m.width).Render(strings.Join(hints, "  •  "))
}

func (m Model) renderContent() string {
	var body string
	switch m.view {
	case ViewTuners:
		body = m.renderTuners()
	case ViewLogs:
		body = m.renderLogs()
	case ViewVersion:
		body = m.renderVersion()
	}
	return lipgloss.NewStyle().
		Width(m.contentWidth()).
		Height(m.contentHeight()).
		MaxHeight(m.contentHeight()).
		Padding(0, 1).
		Render(body)
}

// renderOverlay centers content over the whole screen.
func (m Model) renderOverlay(content string) string {
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		content,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

func (m Model) fetchServerStatusCmd() tea.Cmd {
	if m.admin == nil {
		return nil
	}
	ctx, admin := m.ctx, m.admin
	return func() tea.Msg {
		client, err := admin()
		if err != nil {
			return serverStatusMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		status, err := client.FetchStatus(ctx)
		return serverStatusMsg{status: status, err: err}
	}
}
