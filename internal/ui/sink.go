package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tunerwatch/internal/logstream"
	"github.com/five82/tunerwatch/internal/state"
)

// ConnectionMsg reports a connection transition and its display label.
type ConnectionMsg struct {
	State state.ConnectionState
	Label string
}

// ActivityMsg reports a recomputed activity state.
type ActivityMsg struct {
	Activity state.Activity
}

// LogMsg carries newly emitted log entries and the running line count.
type LogMsg struct {
	Entries []logstream.Entry
	Total   uint64
}

// LogEndedMsg reports that the log stream ended.
type LogEndedMsg struct {
	Err error
}

// Sink forwards watchdog and log follower notifications into the program.
// It satisfies watchdog.Listener and app.LogSink.
type Sink struct {
	send func(tea.Msg)
}

// NewSink returns a Sink delivering messages with send, typically
// (*tea.Program).Send.
func NewSink(send func(tea.Msg)) *Sink {
	return &Sink{send: send}
}

func (s *Sink) ConnectionChanged(conn state.ConnectionState, label string) {
	s.send(ConnectionMsg{State: conn, Label: label})
}

func (s *Sink) ActivityChanged(activity state.Activity) {
	s.send(ActivityMsg{Activity: activity})
}

func (s *Sink) LogEntries(entries []logstream.Entry, total uint64) {
	s.send(LogMsg{Entries: entries, Total: total})
}

func (s *Sink) LogStreamEnded(err error) {
	s.send(LogEndedMsg{Err: err})
}
