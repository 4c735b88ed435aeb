// Package ui is the Bubble Tea front end of tunerwatch.
//
// # Layout
//
// One header line carries the connection indicator (N/A, Connecting,
// Active, Standby, Disconnected or Error: <status>), the configured
// address and the server version. Below it three tabs share the screen:
//
//   - Tuners: the mirrored tuner table, re-read from the store every few
//     seconds and on every activity change. x kills the process of the
//     selected tuner after confirmation.
//   - Logs (N): the retained server log, coloured by level, following the
//     tail until scrolled away from it. N counts every line received.
//   - Version: current and latest server version, with u starting an
//     update whose progress streams into a modal.
//
// p opens Preferences, a single "host:port" input labelled N/A, TCP/IPv4
// or Invalid Host as it is typed. A valid address is written to the
// settings store once typing has paused for PrefsSaveDelay, and only when
// it differs from the stored one.
//
// # Data Flow
//
// The UI never mutates tuner state. The watchdog and the log follower
// push notifications through a Sink, which turns them into messages for
// the program. Request/response calls (status, version, kill, update) run
// as commands against a client built from the current settings.
package ui
