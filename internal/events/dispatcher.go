// ABOUTME: Ordered, synchronous dispatch of events to registered handlers
// ABOUTME: Applies flow directives and isolates handler failures and panics

package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/lcu-gateway/internal/notify"
)

// Observer is told about dispatch activity. Implementations must be cheap;
// they run on the read loop.
type Observer interface {
	EventDispatched(ctx context.Context, ev Event, handlers int)
	HandlerFailed(ctx context.Context, ev Event, err error)
}

// Dispatcher owns the subscription registry and delivers events to it.
// Dispatch must be called from a single goroutine (the channel read loop);
// Subscribe and Unsubscribe may be called from anywhere, including handlers.
type Dispatcher struct {
	mu       sync.Locker
	registry *Registry
	logger   *slog.Logger
	notifier notify.Notifier
	observer Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLocker makes the dispatcher guard its registry with an owner's lock,
// so the owner's mutable state and the registry share one lock.
func WithLocker(l sync.Locker) Option {
	return func(d *Dispatcher) { d.mu = l }
}

// WithNotifier sets where handler failures are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithObserver sets the dispatch observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher creates a dispatcher with an empty registry. Pass nil logger for default.
func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		registry: NewRegistry(),
		logger:   logger.With("component", "dispatcher"),
		notifier: notify.Discard,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.mu == nil {
		d.mu = &sync.Mutex{}
	}
	return d
}

// Subscribe registers h for events whose URI equals sel.
func (d *Dispatcher) Subscribe(sel Selector, h Handler) ID {
	d.mu.Lock()
	id := d.registry.Add(sel, h)
	d.mu.Unlock()

	d.logger.Debug("subscription added", "selector", sel, "id", id)
	return id
}

// Unsubscribe removes a subscription. It reports whether it was registered.
func (d *Dispatcher) Unsubscribe(id ID) bool {
	d.mu.Lock()
	removed := d.registry.Remove(id)
	d.mu.Unlock()

	if removed {
		d.logger.Debug("subscription removed", "id", id)
	}
	return removed
}

// Len returns the number of active subscriptions.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Len()
}

// Dispatch delivers ev to every subscription matching its URI, in
// registration order. The lock is not held while handlers run.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	d.mu.Lock()
	subs := d.registry.Match(ev.Selector())
	d.mu.Unlock()

	if d.observer != nil {
		d.observer.EventDispatched(ctx, ev, len(subs))
	}

	for _, sub := range subs {
		// An earlier handler may have removed this one.
		d.mu.Lock()
		live := d.registry.Contains(sub.ID)
		d.mu.Unlock()
		if !live {
			continue
		}

		dir, err := d.invoke(ctx, sub, ev)
		if err != nil {
			d.report(ctx, ev, err)
			continue
		}
		if dir == Unsubscribe {
			d.Unsubscribe(sub.ID)
		}
	}
}

// invoke runs one handler, turning errors and panics into a *HandlerError.
func (d *Dispatcher) invoke(ctx context.Context, sub Subscription, ev Event) (dir Directive, err error) {
	defer func() {
		if r := recover(); r != nil {
			dir = Continue
			err = &HandlerError{ID: sub.ID, Selector: sub.Selector, Panic: r, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	dir, err = sub.Handler.Handle(ctx, ev)
	if err != nil {
		return Continue, &HandlerError{ID: sub.ID, Selector: sub.Selector, Err: err}
	}
	return dir, nil
}

func (d *Dispatcher) report(ctx context.Context, ev Event, err error) {
	d.logger.Error("handler failed", "uri", ev.URI, "event_type", ev.Type, "error", err)
	d.notifier.Emit(notify.SignalDiagnostic, notify.Diagnostic{
		Source:   "dispatcher",
		Selector: ev.URI,
		Message:  err.Error(),
	})
	if d.observer != nil {
		d.observer.HandlerFailed(ctx, ev, err)
	}
}
