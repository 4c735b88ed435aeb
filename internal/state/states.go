package state

import "github.com/five82/tunerwatch/internal/mirakurun"

// ConnectionState is the watchdog's view of the server connection.
type ConnectionState int

const (
	Offline ConnectionState = iota
	Connecting
	Connected
	Error
)

func (c ConnectionState) String() string {
	switch c {
	case Offline:
		return "offline"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Activity is derived from the tuner table.
type Activity int

const (
	Standby Activity = iota
	Active
)

func (a Activity) String() string {
	if a == Active {
		return "Active"
	}
	return "Standby"
}

// Display labels for the connection indicator.
const (
	LabelUnknown      = "N/A"
	LabelConnecting   = "Connecting"
	LabelDisconnected = "Disconnected"
)

// Aggregate is Active when at least one tuner is in use by a user whose
// priority is not -1.
func Aggregate(tuners []mirakurun.Tuner) Activity {
	for _, tuner := range tuners {
		if tuner.InUse() {
			return Active
		}
	}
	return Standby
}
