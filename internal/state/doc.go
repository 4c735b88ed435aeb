// Package state holds the mirrored tuner table and connection state shared
// between the watchdog and the UI.
//
// The watchdog goroutine is the only writer: it replaces the table after a
// snapshot fetch, patches single records as events arrive and records
// connection transitions. The UI reads with Snapshot, which deep-copies the
// table so a render never observes a record half-way through an update.
//
// Aggregate derives the Active/Standby indicator from a table and has no
// state of its own.
package state
