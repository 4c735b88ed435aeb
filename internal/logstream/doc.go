// Package logstream turns the server's live log stream into a bounded
// history of classified lines.
//
// # Overview
//
// The server writes its log as plain text lines over a long-lived HTTP
// response. Chunks arrive at arbitrary byte offsets, so a Processor keeps
// the trailing partial line between calls and only emits complete lines.
//
// # History
//
// Emitted lines go into a ring buffer holding the newest Capacity entries
// (DefaultCapacity when unset). Older entries are evicted in arrival
// order. Total counts every line ever emitted and never decreases, which
// lets a view tell "500 lines" apart from "500 of 12 000 lines".
//
// # Classification
//
// Lines shaped like
//
//	2024-10-10T14:32:15.123+09:00 info: tuner #0 started
//
// are classified by the lowercase word before the colon ("info", "warn",
// "error", "debug", ...). Anything else is classified as "other".
//
// # Concurrency
//
// A Processor is safe for concurrent use. The log follower feeds it from
// its session goroutine while the UI reads Entries.
package logstream
