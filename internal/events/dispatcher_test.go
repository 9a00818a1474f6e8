// ABOUTME: Tests for ordered dispatch, flow directives, and failure isolation
// ABOUTME: Covers unsubscribe timing, panics, and mutation during dispatch

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/lcu-gateway/internal/notify"
)

const lobbyURI = "/lol-lobby/v2/lobby"

func lobbyEvent(t EventType) Event {
	return Event{Kind: 8, Label: "OnJsonApiEvent", URI: lobbyURI, Type: t, Data: []byte(`{}`)}
}

// trace records handler invocations in order.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) handler(name string, dir Directive) HandlerFunc {
	return func(ctx context.Context, ev Event) (Directive, error) {
		tr.mu.Lock()
		tr.calls = append(tr.calls, name)
		tr.mu.Unlock()
		return dir, nil
	}
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

type countingObserver struct {
	dispatched []int
	failed     int
}

func (o *countingObserver) EventDispatched(_ context.Context, _ Event, handlers int) {
	o.dispatched = append(o.dispatched, handlers)
}

func (o *countingObserver) HandlerFailed(context.Context, Event, error) {
	o.failed++
}

func TestDispatcher_InvokesInRegistrationOrder(t *testing.T) {
	d := NewDispatcher(nil)
	tr := &trace{}

	d.Subscribe(lobbyURI, tr.handler("A", Continue))
	d.Subscribe(lobbyURI, tr.handler("B", Continue))
	d.Subscribe(lobbyURI, tr.handler("C", Continue))

	d.Dispatch(t.Context(), lobbyEvent(Update))
	d.Dispatch(t.Context(), lobbyEvent(Update))

	assert.Equal(t, []string{"A", "B", "C", "A", "B", "C"}, tr.get())
}

func TestDispatcher_ExactSelectorMatch(t *testing.T) {
	d := NewDispatcher(nil)
	tr := &trace{}

	d.Subscribe(lobbyURI, tr.handler("lobby", Continue))
	d.Subscribe(lobbyURI+"/members", tr.handler("members", Continue))

	d.Dispatch(t.Context(), lobbyEvent(Update))

	assert.Equal(t, []string{"lobby"}, tr.get())
}

func TestDispatcher_UnsubscribeSeesTriggeringEvent(t *testing.T) {
	d := NewDispatcher(nil)
	tr := &trace{}

	d.Subscribe(lobbyURI, tr.handler("once", Unsubscribe))
	d.Subscribe(lobbyURI, tr.handler("always", Continue))
	require.Equal(t, 2, d.Len())

	d.Dispatch(t.Context(), lobbyEvent(Create))
	assert.Equal(t, []string{"once", "always"}, tr.get())
	assert.Equal(t, 1, d.Len(), "unsubscribed handler must be gone before the next event")

	d.Dispatch(t.Context(), lobbyEvent(Update))
	assert.Equal(t, []string{"once", "always", "always"}, tr.get())
}

func TestDispatcher_HandlerErrorIsIsolated(t *testing.T) {
	rec := notify.NewRecorder()
	obs := &countingObserver{}
	d := NewDispatcher(nil, WithNotifier(rec), WithObserver(obs))
	tr := &trace{}

	d.Subscribe(lobbyURI, HandlerFunc(func(context.Context, Event) (Directive, error) {
		return Unsubscribe, errors.New("boom")
	}))
	d.Subscribe(lobbyURI, tr.handler("after", Continue))

	d.Dispatch(t.Context(), lobbyEvent(Update))

	assert.Equal(t, []string{"after"}, tr.get())
	assert.Equal(t, 2, d.Len(), "a failing handler keeps its subscription")

	diags := rec.Named(notify.SignalDiagnostic)
	require.Len(t, diags, 1)
	diag, ok := diags[0].(notify.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, lobbyURI, diag.Selector)
	assert.Contains(t, diag.Message, "boom")
	assert.Equal(t, []int{2}, obs.dispatched)
	assert.Equal(t, 1, obs.failed)
}

func TestDispatcher_HandlerPanicIsIsolated(t *testing.T) {
	rec := notify.NewRecorder()
	d := NewDispatcher(nil, WithNotifier(rec))
	tr := &trace{}

	d.Subscribe(lobbyURI, HandlerFunc(func(context.Context, Event) (Directive, error) {
		var m map[string]int
		m["x"] = 1
		return Continue, nil
	}))
	d.Subscribe(lobbyURI, tr.handler("survivor", Continue))

	assert.NotPanics(t, func() {
		d.Dispatch(t.Context(), lobbyEvent(Update))
	})
	assert.Equal(t, []string{"survivor"}, tr.get())
	assert.Len(t, rec.Named(notify.SignalDiagnostic), 1)
}

func TestDispatcher_InvokeWrapsHandlerError(t *testing.T) {
	d := NewDispatcher(nil)
	sentinel := errors.New("bad state")
	sub := Subscription{ID: "sub-1", Selector: lobbyURI, Handler: HandlerFunc(func(context.Context, Event) (Directive, error) {
		return Continue, sentinel
	})}

	_, err := d.invoke(t.Context(), sub, lobbyEvent(Update))

	assert.ErrorIs(t, err, ErrHandler)
	assert.ErrorIs(t, err, sentinel)
	var hErr *HandlerError
	require.ErrorAs(t, err, &hErr)
	assert.Equal(t, ID("sub-1"), hErr.ID)
}

func TestDispatcher_RemovalDuringDispatchSkipsLaterHandler(t *testing.T) {
	d := NewDispatcher(nil)
	tr := &trace{}

	var victim ID
	d.Subscribe(lobbyURI, HandlerFunc(func(ctx context.Context, ev Event) (Directive, error) {
		d.Unsubscribe(victim)
		return Continue, nil
	}))
	victim = d.Subscribe(lobbyURI, tr.handler("victim", Continue))

	d.Dispatch(t.Context(), lobbyEvent(Update))

	assert.Empty(t, tr.get(), "a subscription removed mid-dispatch must not be invoked")
}

func TestDispatcher_SubscribeDuringDispatchStartsWithNextEvent(t *testing.T) {
	d := NewDispatcher(nil)
	tr := &trace{}

	d.Subscribe(lobbyURI, HandlerFunc(func(ctx context.Context, ev Event) (Directive, error) {
		d.Subscribe(lobbyURI, tr.handler("late", Continue))
		return Unsubscribe, nil
	}))

	d.Dispatch(t.Context(), lobbyEvent(Update))
	assert.Empty(t, tr.get())

	d.Dispatch(t.Context(), lobbyEvent(Update))
	assert.Equal(t, []string{"late"}, tr.get())
}

func TestDispatcher_SharesOwnerLock(t *testing.T) {
	var mu sync.Mutex
	d := NewDispatcher(nil, WithLocker(&mu))

	mu.Lock()
	done := make(chan struct{})
	go func() {
		d.Subscribe(lobbyURI, HandlerFunc(func(context.Context, Event) (Directive, error) { return Continue, nil }))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Subscribe must wait for the owner's lock")
	case <-time.After(20 * time.Millisecond):
	}
	mu.Unlock()
	<-done
	assert.Equal(t, 1, d.Len())
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	obs := &countingObserver{}
	d := NewDispatcher(nil, WithObserver(obs))

	d.Dispatch(t.Context(), lobbyEvent(Delete))

	assert.Equal(t, []int{0}, obs.dispatched)
	assert.False(t, d.Unsubscribe("missing"))
}
