// ABOUTME: Event, selector, handler and flow directive types for event dispatch
// ABOUTME: Handlers return a Directive telling the dispatcher to keep or drop them

package events

import (
	"context"
	"encoding/json"
)

// EventType is the change kind carried by an event. Values are compared
// case-sensitively against the wire string.
type EventType string

const (
	Create EventType = "Create"
	Update EventType = "Update"
	Delete EventType = "Delete"
)

// Event is one decoded state-change notification from the event stream.
// It is passed by value and must not be modified by handlers.
type Event struct {
	// Kind is the wire opcode of the frame that carried the event.
	Kind int
	// Label is the subscription label the event arrived under.
	Label string
	URI   string
	Type  EventType
	Data  json.RawMessage
}

// Selector identifies the events a subscription wants. Matching is exact
// equality against the event URI.
type Selector string

// Selector returns the selector that matches this event.
func (e Event) Selector() Selector {
	return Selector(e.URI)
}

// Directive is a handler's instruction to the dispatcher after each event.
type Directive int

const (
	// Continue keeps the subscription.
	Continue Directive = iota
	// Unsubscribe removes the subscription once the current invocation returns.
	Unsubscribe
)

func (d Directive) String() string {
	switch d {
	case Continue:
		return "continue"
	case Unsubscribe:
		return "unsubscribe"
	default:
		return "unknown"
	}
}

// Handler consumes events. A returned error is reported by the dispatcher and
// does not affect other handlers; the subscription is kept.
type Handler interface {
	Handle(ctx context.Context, ev Event) (Directive, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) (Directive, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) (Directive, error) {
	return f(ctx, ev)
}
