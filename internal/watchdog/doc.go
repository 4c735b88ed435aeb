// Package watchdog keeps a local mirror of the server's tuner table
// connected and fresh.
//
// # Lifecycle
//
// A Watchdog starts Offline. On Start, and on every configuration change
// once the change has been quiet for the debounce period, it:
//
//  1. cancels any pending retry and tears down the current event stream,
//  2. goes Offline and validates the stored host and port,
//  3. stays Offline on invalid configuration until the next change,
//  4. otherwise goes Connecting and fetches the tuner list,
//  5. replaces the table and opens the tuner update event stream,
//  6. goes Connected and applies every event to the table.
//
// A failed fetch or open moves to Error and retries after FetchRetry. A
// stream that ends moves to Error and retries after StreamRetry. Retries
// read the configuration again, so a retry always uses the stored values.
//
// # Concurrency
//
// All state lives on one loop goroutine. Fetches, stream opens, stream
// reads and timers run elsewhere and report back as messages tagged with
// the attempt generation they belong to. Messages from an older
// generation are dropped, which is how a torn-down stream is kept from
// touching the table. Readers outside the loop use Store.Snapshot.
//
// # Notifications
//
// The Listener hears every connection transition, with its display label,
// and every activity recomputation. Both calls run on the loop goroutine
// and must not block.
package watchdog
