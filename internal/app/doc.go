// Package app is the composition root of tunerwatch.
//
// # Overview
//
// Run loads the configuration store, applies any --host/--port override,
// and starts three background producers before handing the terminal to
// the UI:
//
//   - the watchdog (internal/watchdog), which mirrors the tuner table
//     over the event stream and reports connection and activity changes;
//   - the LogFollower, which keeps the server log stream open and feeds
//     it through a logstream.Processor;
//   - the config file watcher, which reloads the store when another
//     program edits it.
//
// # Data Flow
//
//	config.Store ──Watch(host/port)──> watchdog.Reconfigure (debounced)
//	                                └─> LogFollower.Reload  (immediate)
//
//	watchdog ──> state.Store <── ui (snapshot on tick)
//	    └──────> relay ──> ui.Sink ──> tea.Program
//	LogFollower ─┘
//
// Producers are started from the UI's ready callback, so their first
// notification always reaches a running program. The first connection
// attempt waits DefaultStartDelay.
//
// # Reconnect Policies
//
// The watchdog and the log follower recover independently. A failed
// tuner fetch is retried after 5 s and a dropped event stream after 3 s;
// a dropped log stream is reopened after DefaultLogReload. A change to
// host or port cancels every pending retry and starts over.
package app
