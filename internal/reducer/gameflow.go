// ABOUTME: Forwards gameflow phase changes to the host as raw payloads
// ABOUTME: Also provides the debug logging subscriber for arbitrary URIs

package reducer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/2389/lcu-gateway/internal/events"
	"github.com/2389/lcu-gateway/internal/notify"
)

// GameflowPhaseURI carries the client's current gameflow phase as a JSON string.
const GameflowPhaseURI events.Selector = "/lol-gameflow/v1/gameflow-phase"

// Gameflow emits every gameflow phase payload unchanged.
type Gameflow struct {
	notifier notify.Notifier
}

// NewGameflow creates the forwarder.
func NewGameflow(notifier notify.Notifier) *Gameflow {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Gameflow{notifier: notifier}
}

// Register subscribes to the gameflow phase selector.
func (g *Gameflow) Register(s Subscriber) events.ID {
	return s.Subscribe(GameflowPhaseURI, g)
}

// Handle forwards the payload.
func (g *Gameflow) Handle(_ context.Context, ev events.Event) (events.Directive, error) {
	payload := ev.Data
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	g.notifier.Emit(notify.SignalGameflow, payload)
	return events.Continue, nil
}

// EventLog writes every event it receives to the debug log.
type EventLog struct {
	logger *slog.Logger
}

// NewEventLog creates a logging subscriber. Pass nil logger for default.
func NewEventLog(logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{logger: logger.With("component", "eventlog")}
}

// Register subscribes the logger to each selector.
func (l *EventLog) Register(s Subscriber, selectors ...events.Selector) []events.ID {
	ids := make([]events.ID, 0, len(selectors))
	for _, sel := range selectors {
		ids = append(ids, s.Subscribe(sel, l))
	}
	return ids
}

// Handle logs the event.
func (l *EventLog) Handle(ctx context.Context, ev events.Event) (events.Directive, error) {
	l.logger.DebugContext(ctx, "event",
		"uri", ev.URI,
		"event_type", ev.Type,
		"bytes", len(ev.Data))
	return events.Continue, nil
}
