package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tunerwatch/internal/logstream"
	"github.com/five82/tunerwatch/internal/mirakurun"
	"github.com/five82/tunerwatch/internal/state"
)

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
	sets   []map[string]string
	err    error
}

func newFakeSettings(host, port string) *fakeSettings {
	return &fakeSettings{values: map[string]string{"host": host, "port": port, "theme": "Dracula"}}
}

func (s *fakeSettings) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *fakeSettings) Set(key, value string) error {
	return s.SetAll(map[string]string{key: value})
}

func (s *fakeSettings) SetAll(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sets = append(s.sets, values)
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *fakeSettings) Endpoint() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values["host"], s.values["port"]
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func readyModel(t *testing.T, opts Options) Model {
	t.Helper()
	m, _ := update(t, New(opts), tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestPrefsLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", PrefsLabelEmpty},
		{"   ", PrefsLabelEmpty},
		{"192.168.1.20:40772", PrefsLabelValid},
		{"10.0.0.1:1", PrefsLabelValid},
		{"127.0.0.1:40772", PrefsLabelValid},
		{"8.8.8.8:40772", PrefsLabelInvalid},
		{"192.168.1.20", PrefsLabelInvalid},
		{"192.168.1.20:", PrefsLabelInvalid},
		{"192.168.1.20:0", PrefsLabelInvalid},
		{"192.168.1.20:70000", PrefsLabelInvalid},
		{"tuner.local:40772", PrefsLabelInvalid},
	}
	for _, tt := range tests {
		if got := PrefsLabel(tt.input); got != tt.want {
			t.Errorf("PrefsLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTunerRow(t *testing.T) {
	tuner := mirakurun.Tuner{
		Index:   2,
		Name:    "PX-Q3PE",
		Types:   []string{"BS", "CS"},
		Command: "recpt1 --device /dev/pt3video2",
		IsUsing: true,
		Users:   []mirakurun.User{{ID: "rec", Priority: 2}, {ID: "epg", Priority: -1}},
	}
	got := tunerRow(tuner)
	want := []string{"2", "PX-Q3PE", "BS, CS", "in use", "recpt1 --device /dev/pt3video2", "rec [2], epg [-1]"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("tunerRow = %q, want %q", got, want)
	}

	idle := tunerRow(mirakurun.Tuner{Index: 0, IsFree: true, IsAvailable: true})
	if idle[3] != "free" || idle[4] != "-" || idle[5] != "-" {
		t.Fatalf("idle row = %q", idle)
	}
	if s := tunerState(mirakurun.Tuner{IsFault: true, IsUsing: true}); s != "fault" {
		t.Fatalf("faulty tuner state = %q", s)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated text", 8, "trunc..."},
		{"abc", 2, "ab"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestThemes(t *testing.T) {
	if GetTheme("missing").Name != "Dracula" {
		t.Fatalf("unknown theme did not fall back to Dracula")
	}
	seen := map[string]bool{}
	name := "Dracula"
	for i := 0; i < len(themeOrder); i++ {
		seen[name] = true
		name = NextTheme(name)
	}
	if name != "Dracula" || len(seen) != len(themeOrder) {
		t.Fatalf("theme cycle visited %v and ended at %q", seen, name)
	}
}

func TestConnectionAndActivityLabels(t *testing.T) {
	m := readyModel(t, Options{})
	if m.label != state.LabelUnknown {
		t.Fatalf("initial label = %q", m.label)
	}

	m, _ = update(t, m, ConnectionMsg{State: state.Connecting, Label: state.LabelConnecting})
	m, _ = update(t, m, ActivityMsg{Activity: state.Active})
	if m.label != state.LabelConnecting {
		t.Fatalf("activity changed label while connecting: %q", m.label)
	}

	m, _ = update(t, m, ConnectionMsg{State: state.Connected, Label: "Standby"})
	m, _ = update(t, m, ActivityMsg{Activity: state.Active})
	if m.label != "Active" {
		t.Fatalf("label = %q, want Active", m.label)
	}
	if !strings.Contains(m.View(), "Active") {
		t.Fatalf("header does not show the activity label")
	}

	m, _ = update(t, m, ConnectionMsg{State: state.Error, Label: "Error: 503"})
	if !strings.Contains(m.View(), "Error: 503") {
		t.Fatalf("header does not show the error label")
	}
}

func TestLogMessagesUpdateCount(t *testing.T) {
	m := readyModel(t, Options{})
	m, _ = update(t, m, LogMsg{
		Entries: []logstream.Entry{{Level: "info", Text: "a"}, {Level: "error", Text: "b"}},
		Total:   2,
	})
	if m.logTotal != 2 || len(m.logEntries) != 2 {
		t.Fatalf("logTotal = %d entries = %d", m.logTotal, len(m.logEntries))
	}
	if !strings.Contains(m.renderTabs(), "Logs (2)") {
		t.Fatalf("tabs = %q, want Logs (2)", m.renderTabs())
	}

	m, _ = update(t, m, LogEndedMsg{Err: errors.New("eof")})
	if !m.logEnded {
		t.Fatal("LogEndedMsg not recorded")
	}
}

func TestLogEntriesAreCapped(t *testing.T) {
	m := readyModel(t, Options{})
	batch := make([]logstream.Entry, logstream.DefaultCapacity+10)
	for i := range batch {
		batch[i] = logstream.Entry{Level: logstream.LevelOther, Text: "x"}
	}
	m, _ = update(t, m, LogMsg{Entries: batch, Total: uint64(len(batch))})
	if len(m.logEntries) != logstream.DefaultCapacity {
		t.Fatalf("entries = %d, want %d", len(m.logEntries), logstream.DefaultCapacity)
	}
}

func TestPrefsSavesAfterQuietPeriod(t *testing.T) {
	settings := newFakeSettings("", "")
	m := readyModel(t, Options{Settings: settings})

	m, _ = update(t, m, runes("p"))
	if m.prefs == nil {
		t.Fatal("preferences did not open")
	}
	if m.prefs.label != PrefsLabelEmpty {
		t.Fatalf("empty input label = %q", m.prefs.label)
	}

	for _, r := range "192.168.1.20:40772" {
		m, _ = update(t, m, runes(string(r)))
	}
	if m.prefs.label != PrefsLabelValid {
		t.Fatalf("label = %q, want %q", m.prefs.label, PrefsLabelValid)
	}

	// A save scheduled before the last keystroke is ignored.
	m, cmd := update(t, m, prefsSaveMsg{seq: m.prefsSeq - 1, input: "192.168.1.20:4077"})
	if cmd != nil {
		t.Fatal("stale save produced a command")
	}

	m, cmd = update(t, m, prefsSaveMsg{seq: m.prefsSeq, input: "192.168.1.20:40772"})
	if cmd == nil {
		t.Fatal("save produced no command")
	}
	saved, ok := cmd().(prefsSavedMsg)
	if !ok || saved.err != nil {
		t.Fatalf("save result = %#v", saved)
	}
	if host, port := settings.Endpoint(); host != "192.168.1.20" || port != "40772" {
		t.Fatalf("stored endpoint = %s:%s", host, port)
	}

	// Unchanged value is not written again.
	_, cmd = update(t, m, prefsSaveMsg{seq: m.prefsSeq, input: "192.168.1.20:40772"})
	if cmd != nil {
		t.Fatal("unchanged value produced a save")
	}
	if len(settings.sets) != 1 {
		t.Fatalf("SetAll called %d times, want 1", len(settings.sets))
	}
}

func TestPrefsInvalidInputIsNotSaved(t *testing.T) {
	settings := newFakeSettings("192.168.1.20", "40772")
	m := readyModel(t, Options{Settings: settings})
	m, _ = update(t, m, runes("p"))
	m, _ = update(t, m, runes("x"))
	if m.prefs.label != PrefsLabelInvalid {
		t.Fatalf("label = %q, want %q", m.prefs.label, PrefsLabelInvalid)
	}
	_, cmd := update(t, m, prefsSaveMsg{seq: m.prefsSeq, input: m.prefs.input.Value()})
	if cmd != nil {
		t.Fatal("invalid input produced a save")
	}
}

func TestKillRequiresCommand(t *testing.T) {
	m := readyModel(t, Options{})
	m, _ = update(t, m, snapshotMsg(state.Snapshot{
		HasTuners: true,
		Tuners: []mirakurun.Tuner{
			{Index: 0, Name: "idle"},
			{Index: 1, Name: "busy", Command: "recpt1"},
		},
	}))

	m, _ = update(t, m, runes("x"))
	if m.modal != nil || !m.noticeBad {
		t.Fatalf("kill on tuner without command opened modal=%v notice=%q", m.modal != nil, m.notice)
	}

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("x"))
	if _, ok := m.modal.(killModal); !ok {
		t.Fatalf("modal = %T, want killModal", m.modal)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.modal != nil {
		t.Fatal("esc did not close the kill modal")
	}
}

func TestColorizeEntriesPlaceholder(t *testing.T) {
	out := colorizeEntries(nil, GetTheme("Dracula").Styles(), 80)
	if !strings.Contains(out, "Waiting for server log") {
		t.Fatalf("placeholder = %q", out)
	}
	out = colorizeEntries([]logstream.Entry{{Level: "info", Text: "hello"}}, GetTheme("Dracula").Styles(), 80)
	if !strings.Contains(out, "hello") {
		t.Fatalf("colorized = %q", out)
	}
}

func TestSinkForwardsMessages(t *testing.T) {
	var got []tea.Msg
	sink := NewSink(func(msg tea.Msg) { got = append(got, msg) })
	sink.ConnectionChanged(state.Connected, "Active")
	sink.ActivityChanged(state.Standby)
	sink.LogEntries([]logstream.Entry{{Text: "x"}}, 7)
	sink.LogStreamEnded(nil)

	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	if c, ok := got[0].(ConnectionMsg); !ok || c.Label != "Active" {
		t.Fatalf("first message = %#v", got[0])
	}
	if l, ok := got[2].(LogMsg); !ok || l.Total != 7 {
		t.Fatalf("third message = %#v", got[2])
	}
}

type closeTracker struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (c *closeTracker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *closeTracker) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeAdmin struct {
	body *closeTracker
}

func (a *fakeAdmin) FetchStatus(context.Context) (*mirakurun.Status, error) {
	return nil, errors.New("not implemented")
}

func (a *fakeAdmin) CheckVersion(context.Context) (*mirakurun.Version, error) {
	return nil, errors.New("not implemented")
}

func (a *fakeAdmin) KillTunerProcess(context.Context, int) (*mirakurun.KillResult, error) {
	return nil, errors.New("not implemented")
}

func (a *fakeAdmin) UpdateVersion(ctx context.Context) (*mirakurun.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &mirakurun.Stream{StatusCode: 200, Body: a.body}, nil
}

func versionModel(t *testing.T, admin *fakeAdmin) Model {
	t.Helper()
	m := readyModel(t, Options{Admin: func() (mirakurun.Admin, error) { return admin, nil }})
	m, _ = update(t, m, runes("3"))
	m, _ = update(t, m, versionMsg{version: &mirakurun.Version{Current: "3.9.0", Latest: "4.0.0"}})
	return m
}

func TestUpdateCancelledBeforeStart(t *testing.T) {
	admin := &fakeAdmin{body: &closeTracker{Reader: strings.NewReader("")}}
	m := versionModel(t, admin)

	m, start := update(t, m, runes("u"))
	if _, ok := m.modal.(*updateModal); !ok || start == nil {
		t.Fatalf("update did not start: modal=%T cmd=%v", m.modal, start != nil)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.modal != nil {
		t.Fatal("esc did not close the update modal")
	}

	started, ok := start().(updateStartedMsg)
	if !ok || !errors.Is(started.err, context.Canceled) {
		t.Fatalf("start after esc = %#v, want context.Canceled", started)
	}
	if _, cmd := update(t, m, started); cmd != nil {
		t.Fatal("late start produced a command")
	}
}

func TestLateUpdateStreamIsClosed(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("installing\n")}
	m := readyModel(t, Options{})

	m, cmd := update(t, m, updateStartedMsg{stream: &mirakurun.Stream{StatusCode: 200, Body: body}})
	if cmd != nil || m.modal != nil {
		t.Fatalf("orphaned start produced cmd=%v modal=%T", cmd != nil, m.modal)
	}
	if !body.isClosed() {
		t.Fatal("stream of a dismissed update was left open")
	}
}

func TestUpdateStreamsProgress(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("step 1\nstep 2\n")}
	m := versionModel(t, &fakeAdmin{body: body})

	m, cmd := update(t, m, runes("u"))
	for cmd != nil {
		msg := cmd()
		m, cmd = update(t, m, msg)
		if _, ok := msg.(updateDoneMsg); ok {
			break
		}
	}
	u, ok := m.modal.(*updateModal)
	if !ok {
		t.Fatalf("modal = %T, want *updateModal", m.modal)
	}
	if !u.done || u.err != nil || strings.Join(u.lines, "|") != "step 1|step 2" {
		t.Fatalf("update modal = done %v err %v lines %q", u.done, u.err, u.lines)
	}
	if !body.isClosed() {
		t.Fatal("finished update left the stream open")
	}
}
