// Package gateway ties the request client, the event channel, and the
// dispatcher together behind one mutex.
//
// # Lifecycle
//
//	NotStarted -> Starting -> Running -> Closed
//
// Initialize performs the only connection attempt. Concurrent callers block
// until that attempt resolves and then return nil. If the credential cannot
// be resolved or is rejected by the event endpoint, the first caller gets the
// error and the gateway drops back to NotStarted. Close is terminal.
//
// # Locking
//
// Gateway.mu guards the channel handle, the request client, and (through
// events.WithLocker) the subscription registry. It is never held across
// network I/O: Initialize resolves and dials unlocked and re-locks only to
// commit, and Request locks only to read the client handle.
//
// # Host API
//
//	POST /api/init              Initialize
//	GET  /api/lcu/{path...}     Request (also PUT and POST); failures are 502 {"error": "..."}
//	GET  /api/help              Help; JSON null when unavailable
//	GET  /api/lobby             current roster
//	GET  /api/events            server-sent events, one per notifier signal
//	GET  /health                liveness
//	GET  /health/ready          200 once Running
package gateway
