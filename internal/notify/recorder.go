// ABOUTME: Recording Notifier used by tests across packages
// ABOUTME: Captures every emission in order for later inspection

package notify

import "sync"

// Recorder stores every emitted signal. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit records the signal.
func (r *Recorder) Emit(signal string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, Signal{Name: signal, Payload: payload})
}

// Signals returns a copy of all recorded signals.
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Named returns the payloads of signals with the given name, in emission order.
func (r *Recorder) Named(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, s := range r.signals {
		if s.Name == name {
			out = append(out, s.Payload)
		}
	}
	return out
}

// Reset discards recorded signals.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = nil
}
