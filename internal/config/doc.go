// Package config stores the tunerwatch settings.
//
// # Overview
//
// Settings live in a TOML file, ~/.config/tunerwatch/config.toml unless a
// path is given:
//
//	host = "192.168.1.20"
//	port = "40772"
//	theme = "Dracula"
//
// port may also be written as a bare integer. A missing file yields an
// empty host and port and the default theme. A file that does not parse
// is an error.
//
// # Keys and Subscriptions
//
// The Store is a key/value view of the file with three keys: host, port
// and theme. Watch subscribes to one key and is called with the new value
// only when the value actually changes, whether the change came from Set,
// SetAll or an external edit picked up by WatchFile.
//
// Set and SetAll write the whole file through a temporary file and a
// rename, so readers never observe a half-written file.
//
// Values are stored as given. Validation of host and port belongs to the
// caller.
package config
