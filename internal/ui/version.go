package ui

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tunerwatch/internal/mirakurun"
)

const updateLogLimit = 200

type versionMsg struct {
	version *mirakurun.Version
	err     error
}

type updateStartedMsg struct {
	stream  *mirakurun.Stream
	scanner *bufio.Scanner
	err     error
}

type updateLineMsg struct {
	line string
}

type updateDoneMsg struct {
	err error
}

func (m Model) checkVersionCmd() tea.Cmd {
	if m.admin == nil {
		return nil
	}
	ctx, admin := m.ctx, m.admin
	return func() tea.Msg {
		client, err := admin()
		if err != nil {
			return versionMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		v, err := client.CheckVersion(ctx)
		return versionMsg{version: v, err: err}
	}
}

func (m Model) renderVersion() string {
	styles := m.theme.Styles()
	switch {
	case m.versionErr != nil:
		return styles.DangerText.Render("Version check failed: " + m.versionErr.Error())
	case m.versionInfo == nil:
		return styles.MutedText.Render("Checking version...")
	}

	v := m.versionInfo
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", styles.MutedText.Render("Current:"), styles.Text.Render(v.Current))
	fmt.Fprintf(&b, "%s %s\n\n", styles.MutedText.Render("Latest: "), styles.Text.Render(v.Latest))
	if v.UpdateAvailable() {
		b.WriteString(styles.WarningText.Render("An update is available. Press u to update the server."))
	} else {
		b.WriteString(styles.SuccessText.Render("Up to date."))
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("r to check again"))
	return b.String()
}

func (m Model) handleVersionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Refresh):
		m.versionInfo, m.versionErr = nil, nil
		return m, m.checkVersionCmd()
	case key.Matches(msg, m.keys.Update):
		if m.versionInfo == nil || !m.versionInfo.UpdateAvailable() || m.admin == nil {
			return m, nil
		}
		ctx, cancel := context.WithCancel(m.ctx)
		m.modal = &updateModal{cancel: cancel}
		return m, startUpdateCmd(ctx, m.admin)
	}
	return m, nil
}

func startUpdateCmd(ctx context.Context, admin AdminFunc) tea.Cmd {
	return func() tea.Msg {
		client, err := admin()
		if err != nil {
			return updateStartedMsg{err: err}
		}
		stream, err := client.UpdateVersion(ctx)
		if err != nil {
			return updateStartedMsg{err: err}
		}
		return updateStartedMsg{stream: stream, scanner: bufio.NewScanner(stream.Body)}
	}
}

func readUpdateCmd(scanner *bufio.Scanner) tea.Cmd {
	return func() tea.Msg {
		if scanner.Scan() {
			return updateLineMsg{line: scanner.Text()}
		}
		return updateDoneMsg{err: scanner.Err()}
	}
}

// updateModal shows the progress of a server update.
type updateModal struct {
	cancel  context.CancelFunc
	stream  *mirakurun.Stream
	scanner *bufio.Scanner
	lines   []string
	done    bool
	err     error
}

func (u *updateModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case updateStartedMsg:
		if msg.err != nil {
			u.done, u.err = true, msg.err
			u.release()
			return u, nil, false
		}
		u.stream, u.scanner = msg.stream, msg.scanner
		return u, readUpdateCmd(u.scanner), false
	case updateLineMsg:
		u.lines = append(u.lines, msg.line)
		if over := len(u.lines) - updateLogLimit; over > 0 {
			u.lines = u.lines[over:]
		}
		return u, readUpdateCmd(u.scanner), false
	case updateDoneMsg:
		u.done, u.err = true, msg.err
		u.release()
		return u, nil, false
	case tea.KeyMsg:
		if key.Matches(msg, keys.Cancel) {
			u.release()
			return u, nil, true
		}
	}
	return u, nil, false
}

func (u *updateModal) release() {
	if u.cancel != nil {
		u.cancel()
	}
	_ = u.stream.Close()
}

func (u *updateModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	title := styles.AccentText.Bold(true).Render("Updating server")
	status := styles.WarningText.Render("running...")
	switch {
	case u.done && u.err != nil:
		status = styles.DangerText.Render("failed: " + u.err.Error())
	case u.done:
		status = styles.SuccessText.Render("finished")
	}

	visible := max(height-12, 3)
	lines := u.lines
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	inner := max(min(width-10, 100), 20)
	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = styles.Text.Render(truncate(line, inner))
	}

	body := title + "  " + status + "\n\n" + strings.Join(rendered, "\n") +
		"\n\n" + styles.FaintText.Render("esc close")
	return styles.Modal.Width(inner + 6).Render(body)
}
