package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tunerwatch/internal/config"
	"github.com/five82/tunerwatch/internal/logstream"
	"github.com/five82/tunerwatch/internal/mirakurun"
	"github.com/five82/tunerwatch/internal/state"
)

// View is the active tab.
type View int

const (
	ViewTuners View = iota
	ViewLogs
	ViewVersion
)

const viewCount = 3

// DefaultRefresh is how often the tuner table is re-read from the store.
const DefaultRefresh = 3 * time.Second

// Settings is the part of the configuration store the UI edits.
type Settings interface {
	Get(key string) string
	Set(key, value string) error
	SetAll(values map[string]string) error
	Endpoint() (host, port string)
}

// LogSource exposes the retained log history.
type LogSource interface {
	Entries() []logstream.Entry
}

// AdminFunc returns a client for the configured server, or an error when
// the configuration is not usable.
type AdminFunc func() (mirakurun.Admin, error)

// Options configures the UI.
type Options struct {
	Context  context.Context
	Store    *state.Store
	Logs     LogSource
	Settings Settings
	Admin    AdminFunc
	Logger   *slog.Logger

	ThemeName string
	Version   string
	Refresh   time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx      context.Context
	store    *state.Store
	logs     LogSource
	settings Settings
	admin    AdminFunc
	logger   *slog.Logger
	version  string
	refresh  time.Duration

	keys   keyMap
	theme  Theme
	view   View
	width  int
	height int
	ready  bool

	// Connection indicator
	conn    state.ConnectionState
	label   string
	spinner spinner.Model
	server  string

	// Tuners
	snapshot state.Snapshot
	selected int

	// Logs
	logViewport viewport.Model
	logEntries  []logstream.Entry
	logTotal    uint64
	follow      bool
	logEnded    bool

	// Version
	versionInfo *mirakurun.Version
	versionErr  error

	// Overlays
	prefs    *prefsModel
	prefsSeq uint64
	modal    Modal
	showHelp bool

	notice    string
	noticeBad bool
}

// New creates the root model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = DefaultRefresh
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		store:    opts.Store,
		logs:     opts.Logs,
		settings: opts.Settings,
		admin:    opts.Admin,
		logger:   logger.With("component", "ui"),
		version:  opts.Version,
		refresh:  refresh,
		keys:     DefaultKeyMap(),
		theme:    GetTheme(opts.ThemeName),
		label:    state.LabelUnknown,
		spinner:  sp,
		follow:   true,
	}
	m.spinner.Style = m.theme.Styles().WarningText
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.refresh), m.spinner.Tick}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(m.contentWidth(), m.contentHeight())
			m.ready = true
		} else {
			m.logViewport.Width = m.contentWidth()
			m.logViewport.Height = m.contentHeight()
		}
		m.renderLogViewport()
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.refresh))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampSelection()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConnectionMsg:
		return m.handleConnection(msg)

	case ActivityMsg:
		if m.conn == state.Connected {
			m.label = msg.Activity.String()
		}
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil

	case LogMsg:
		m.handleLogs(msg)
		return m, nil

	case LogEndedMsg:
		m.logEnded = true
		return m, nil

	case serverStatusMsg:
		if msg.err != nil {
			m.server = ""
			return m, nil
		}
		m.server = msg.status.Summary()
		return m, nil

	case versionMsg:
		m.versionInfo, m.versionErr = msg.version, msg.err
		return m, nil

	case killResultMsg:
		if msg.err != nil {
			m.setNotice("kill failed: "+msg.err.Error(), true)
		} else {
			m.setNotice(killNotice(msg), false)
		}
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil

	case updateStartedMsg:
		// The modal may have been dismissed while the request was in flight.
		if _, ok := m.modal.(*updateModal); !ok {
			_ = msg.stream.Close()
			return m, nil
		}

	case prefsSaveMsg:
		return m.handlePrefsSave(msg)

	case prefsSavedMsg:
		if msg.err != nil {
			m.setNotice("save failed: "+msg.err.Error(), true)
		} else {
			m.setNotice("saved "+msg.value, false)
		}
		return m, nil
	}

	if m.modal != nil {
		var cmd tea.Cmd
		var done bool
		m.modal, cmd, done = m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.prefs != nil {
		return m.renderOverlay(m.prefs.View(m.theme))
	}
	if m.modal != nil {
		return m.renderOverlay(m.modal.View(m.theme, m.width, m.height))
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.prefs != nil {
		return m.updatePrefs(msg)
	}
	if m.modal != nil {
		var cmd tea.Cmd
		var done bool
		m.modal, cmd, done = m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		return m, m.cycleTheme()
	case key.Matches(msg, m.keys.Preferences):
		m.openPrefs()
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		return m.switchView((m.view + 1) % viewCount)
	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView((m.view + viewCount - 1) % viewCount)
	case key.Matches(msg, m.keys.ViewTuners):
		return m.switchView(ViewTuners)
	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	case key.Matches(msg, m.keys.ViewVersion):
		return m.switchView(ViewVersion)
	}

	switch m.view {
	case ViewTuners:
		return m.handleTunersKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	case ViewVersion:
		return m.handleVersionKey(msg)
	}
	return m, nil
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.view = v
	switch v {
	case ViewTuners:
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
	case ViewLogs:
		m.renderLogViewport()
	case ViewVersion:
		return m, m.checkVersionCmd()
	}
	return m, nil
}

func (m Model) handleConnection(msg ConnectionMsg) (tea.Model, tea.Cmd) {
	prev := m.conn
	m.conn = msg.State
	m.label = msg.Label

	var cmds []tea.Cmd
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if msg.State == state.Connected && prev != state.Connected {
		cmds = append(cmds, m.fetchServerStatusCmd())
	}
	if msg.State != state.Connected {
		m.server = ""
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) cycleTheme() tea.Cmd {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.spinner.Style = m.theme.Styles().WarningText
	m.renderLogViewport()
	if m.settings == nil {
		return nil
	}
	settings, name := m.settings, m.theme.Name
	return func() tea.Msg {
		if err := settings.Set(config.KeyTheme, name); err != nil {
			return prefsSavedMsg{value: "theme " + name, err: err}
		}
		return nil
	}
}

func (m *Model) setNotice(text string, bad bool) {
	m.notice = text
	m.noticeBad = bad
}

func (m Model) contentWidth() int {
	if m.width < 4 {
		return 1
	}
	return m.width - 2
}

// contentHeight leaves room for header, tabs and footer.
func (m Model) contentHeight() int {
	if m.height < 6 {
		return 1
	}
	return m.height - 4
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or
// ctx is cancelled. ready is called with the Sink once the program exists
// so producers can start.
func Run(ctx context.Context, opts Options, ready func(*Sink)) error {
	if opts.Context == nil {
		opts.Context = ctx
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if ready != nil {
		ready(NewSink(p.Send))
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
