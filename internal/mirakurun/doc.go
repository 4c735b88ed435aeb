// Package mirakurun provides an HTTP client for the Mirakurun tuner server API.
//
// # Overview
//
// tunerwatch needs two kinds of calls from the server:
//
//   - request/response calls (tuner list, status, version, kill tuner
//     process) that are decoded from JSON and bounded by a 5 second timeout;
//   - long-lived streams (tuner events, server log, version update output)
//     that are returned as a *Stream and read by the caller until it closes.
//
// Streams use a separate http.Client without an overall timeout. Only the
// dial and the wait for response headers are bounded, so a quiet server
// does not tear down an otherwise healthy subscription.
//
// # Endpoints
//
//   - GET    /api/tuners
//   - GET    /api/events/stream?resource=tuner&type=update
//   - GET    /api/log/stream
//   - GET    /api/status
//   - GET    /api/version
//   - PUT    /api/version/update
//   - DELETE /api/tuners/{index}/process
//
// # Errors
//
// Every error is wrapped with context. A response with an unexpected status
// is reported as *StatusError so callers can surface the code:
//
//	var statusErr *mirakurun.StatusError
//	if errors.As(err, &statusErr) {
//		label = fmt.Sprintf("Error: %d", statusErr.StatusCode)
//	}
//
// The client carries no retry policy; the watchdog and the log follower
// decide when to try again.
package mirakurun
