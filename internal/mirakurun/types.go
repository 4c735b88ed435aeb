package mirakurun

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tuner mirrors one element of GET /api/tuners and the data payload of a
// tuner update event.
type Tuner struct {
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Types       []string `json:"types"`
	Command     string   `json:"command,omitempty"`
	PID         int      `json:"pid,omitempty"`
	Users       []User   `json:"users"`
	IsAvailable bool     `json:"isAvailable"`
	IsRemote    bool     `json:"isRemote"`
	IsFree      bool     `json:"isFree"`
	IsUsing     bool     `json:"isUsing"`
	IsFault     bool     `json:"isFault"`
}

// User is a consumer currently attached to a tuner.
type User struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
	Agent    string `json:"agent,omitempty"`
}

// IdlePriority marks a user that holds a tuner without actively watching,
// such as an EPG gatherer. Such users do not make the server Active.
const IdlePriority = -1

// InUse reports whether the tuner is held by at least one user whose
// priority is not IdlePriority.
func (t Tuner) InUse() bool {
	if !t.IsUsing {
		return false
	}
	for _, user := range t.Users {
		if user.Priority != IdlePriority {
			return true
		}
	}
	return false
}

// CommandLabel returns the tuner command or "-" when none is configured.
func (t Tuner) CommandLabel() string {
	if cmd := strings.TrimSpace(t.Command); cmd != "" {
		return cmd
	}
	return "-"
}

// TypesLabel joins the broadcast types, e.g. "GR, BS".
func (t Tuner) TypesLabel() string {
	return strings.Join(t.Types, ", ")
}

// UserLabels renders each user as "id [priority]".
func (t Tuner) UserLabels() []string {
	if len(t.Users) == 0 {
		return nil
	}
	labels := make([]string, 0, len(t.Users))
	for _, user := range t.Users {
		labels = append(labels, fmt.Sprintf("%s [%d]", user.ID, user.Priority))
	}
	return labels
}

// Clone returns a deep copy of the tuner.
func (t Tuner) Clone() Tuner {
	dup := t
	if t.Types != nil {
		dup.Types = append([]string(nil), t.Types...)
	}
	if t.Users != nil {
		dup.Users = append([]User(nil), t.Users...)
	}
	return dup
}

// Event mirrors one record of GET /api/events/stream.
type Event struct {
	Resource string          `json:"resource"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Time     int64           `json:"time"`
}

// EventQuery filters the event stream.
type EventQuery struct {
	Resource string
	Type     string
}

// TunerUpdates selects tuner update events only.
var TunerUpdates = EventQuery{Resource: "tuner", Type: "update"}

// Status mirrors GET /api/status.
type Status struct {
	Version string        `json:"version"`
	Process ProcessStatus `json:"process"`
}

// ProcessStatus describes the server process.
type ProcessStatus struct {
	Arch     string `json:"arch"`
	Platform string `json:"platform"`
	PID      int    `json:"pid"`
}

// Summary renders "Mirakurun <version> <arch> (<platform>)".
func (s Status) Summary() string {
	if s.Version == "" {
		return ""
	}
	summary := "Mirakurun " + s.Version
	if s.Process.Arch != "" {
		summary += " " + s.Process.Arch
	}
	if s.Process.Platform != "" {
		summary += " (" + s.Process.Platform + ")"
	}
	return summary
}

// Version mirrors GET /api/version.
type Version struct {
	Current string `json:"current"`
	Latest  string `json:"latest"`
}

// UpdateAvailable reports whether the server lags the latest release.
func (v Version) UpdateAvailable() bool {
	return v.Latest != "" && v.Current != v.Latest
}

// KillResult mirrors DELETE /api/tuners/{index}/process.
type KillResult struct {
	PID int `json:"pid"`
}
