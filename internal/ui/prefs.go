package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tunerwatch/internal/config"
	"github.com/five82/tunerwatch/internal/validate"
)

// PrefsSaveDelay is the quiet period before an edited address is saved.
const PrefsSaveDelay = 1500 * time.Millisecond

// Labels shown next to the address input.
const (
	PrefsLabelEmpty   = "N/A"
	PrefsLabelValid   = "TCP/IPv4"
	PrefsLabelInvalid = "Invalid Host"
)

type prefsSaveMsg struct {
	seq   uint64
	input string
}

type prefsSavedMsg struct {
	value string
	err   error
}

// PrefsLabel classifies a "host:port" input.
func PrefsLabel(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return PrefsLabelEmpty
	}
	host, port, err := validate.SplitHostPort(input)
	if err != nil {
		return PrefsLabelInvalid
	}
	if validate.Endpoint(host, port) != nil {
		return PrefsLabelInvalid
	}
	return PrefsLabelValid
}

type prefsModel struct {
	input textinput.Model
	label string
}

func newPrefsModel(host, port string) *prefsModel {
	ti := textinput.New()
	ti.Placeholder = "192.168.1.20:40772"
	ti.CharLimit = 64
	ti.Width = 32
	if host != "" || port != "" {
		ti.SetValue(host + ":" + port)
	}
	ti.Focus()
	return &prefsModel{input: ti, label: PrefsLabel(ti.Value())}
}

func (m *Model) openPrefs() {
	var host, port string
	if m.settings != nil {
		host, port = m.settings.Endpoint()
	}
	m.prefs = newPrefsModel(host, port)
}

func (m Model) updatePrefs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
		m.prefs = nil
		return m, nil
	}

	before := m.prefs.input.Value()
	var cmd tea.Cmd
	m.prefs.input, cmd = m.prefs.input.Update(msg)
	value := m.prefs.input.Value()
	if value == before {
		return m, cmd
	}

	m.prefs.label = PrefsLabel(value)
	m.prefsSeq++
	seq := m.prefsSeq
	save := tea.Tick(PrefsSaveDelay, func(time.Time) tea.Msg {
		return prefsSaveMsg{seq: seq, input: value}
	})
	return m, tea.Batch(cmd, save)
}

// handlePrefsSave stores the address typed before the latest quiet period
// if it is valid and differs from the stored one.
func (m Model) handlePrefsSave(msg prefsSaveMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.prefsSeq || m.settings == nil {
		return m, nil
	}
	if PrefsLabel(msg.input) != PrefsLabelValid {
		return m, nil
	}
	host, port, _ := validate.SplitHostPort(strings.TrimSpace(msg.input))
	curHost, curPort := m.settings.Endpoint()
	if host == curHost && port == curPort {
		return m, nil
	}

	settings := m.settings
	value := host + ":" + port
	return m, func() tea.Msg {
		err := settings.SetAll(map[string]string{config.KeyHost: host, config.KeyPort: port})
		return prefsSavedMsg{value: value, err: err}
	}
}

func (p *prefsModel) View(theme Theme) string {
	styles := theme.Styles()
	labelStyle := styles.MutedText
	switch p.label {
	case PrefsLabelValid:
		labelStyle = styles.SuccessText
	case PrefsLabelInvalid:
		labelStyle = styles.DangerText
	}
	body := strings.Join([]string{
		styles.AccentText.Bold(true).Render("Preferences"),
		"",
		styles.MutedText.Render("Server address"),
		p.input.View() + "  " + labelStyle.Render(p.label),
		"",
		styles.FaintText.Render("Saved automatically once you stop typing."),
		styles.FaintText.Render("esc/enter close"),
	}, "\n")
	return styles.Modal.Width(56).Render(body)
}
