// ABOUTME: Outbound notification boundary between reducers and the host application
// ABOUTME: Defines signal names, diagnostic payloads, and logging/tee notifiers

package notify

import (
	"log/slog"
	"time"
)

// Signal names emitted to the host application.
const (
	SignalLobby         = "lobby"
	SignalGameflow      = "gameflow"
	SignalDiagnostic    = "diagnostic"
	SignalChannelHealth = "channel-health"
)

// Notifier receives named signals. Emit must not block on slow consumers.
type Notifier interface {
	Emit(signal string, payload any)
}

// Signal is one emission, as seen by host subscribers.
type Signal struct {
	Name    string    `json:"name"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Diagnostic reports a contained failure: a malformed record or a failing handler.
type Diagnostic struct {
	Source   string `json:"source"`
	Selector string `json:"selector,omitempty"`
	Message  string `json:"message"`
}

// Health reports event channel connectivity.
type Health struct {
	State   string `json:"state"`
	Attempt int    `json:"attempt,omitempty"`
	Error   string `json:"error,omitempty"`
	RetryIn string `json:"retry_in,omitempty"`
}

// Func adapts a function to the Notifier interface.
type Func func(signal string, payload any)

// Emit calls f.
func (f Func) Emit(signal string, payload any) {
	f(signal, payload)
}

// Discard drops every signal.
var Discard Notifier = Func(func(string, any) {})

// Log writes signals to a structured logger. Diagnostics and health problems
// are logged at warn level, everything else at debug.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging notifier. Pass nil logger for default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notify")}
}

// Emit logs the signal.
func (l *Log) Emit(signal string, payload any) {
	switch p := payload.(type) {
	case Diagnostic:
		l.logger.Warn("diagnostic", "source", p.Source, "selector", p.Selector, "message", p.Message)
	case Health:
		if p.Error != "" {
			l.logger.Warn("event channel health", "state", p.State, "attempt", p.Attempt, "error", p.Error, "retry_in", p.RetryIn)
			return
		}
		l.logger.Info("event channel health", "state", p.State)
	default:
		l.logger.Debug("signal emitted", "signal", signal)
	}
}

// Multi fans every signal out to each notifier in order.
type Multi []Notifier

// Emit forwards to each notifier.
func (m Multi) Emit(signal string, payload any) {
	for _, n := range m {
		n.Emit(signal, payload)
	}
}
