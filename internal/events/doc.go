// Package events holds the subscription registry and the dispatcher that
// delivers control plane events to handlers.
//
// Selectors match an event's URI exactly. Handlers for one event run in
// registration order, one at a time, and return a Directive: Continue keeps
// the subscription, Unsubscribe removes it before the next handler runs.
// Errors and panics are contained per handler and reported as diagnostics.
package events
