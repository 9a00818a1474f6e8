// Package channel maintains the WebSocket event stream from the local control
// plane.
//
// A Channel moves through NotStarted, Connecting, Authenticated, Streaming,
// and Closed. Connect performs one dial and subscription; Start launches the
// single read loop, which dispatches each decoded event synchronously and
// reconnects with exponential backoff when the stream drops. A rejected
// credential is terminal.
//
// Frames on the wire:
//
//	[5, "OnJsonApiEvent"]                                   subscribe
//	[8, "OnJsonApiEvent", {"uri", "eventType", "data"}]     event
package channel
