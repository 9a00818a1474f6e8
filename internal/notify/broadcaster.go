// ABOUTME: In-memory fan-out of notifier signals to host-side subscribers
// ABOUTME: Non-blocking publish; subscriptions clean up when their context ends

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster is a Notifier that delivers each signal to every host subscriber,
// for example the SSE stream feeding the desktop UI.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Signal
	closed      bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Signal),
		logger:      logger.With("component", "broadcaster"),
		now:         time.Now,
	}
}

// Subscribe registers a subscriber and returns its channel and ID. The
// subscription is removed and the channel closed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Signal, string) {
	subID := uuid.New().String()
	ch := make(chan Signal, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Emit sends the signal to all subscribers. Signals are dropped for
// subscribers whose channels are full.
func (b *Broadcaster) Emit(signal string, payload any) {
	sig := Signal{Name: signal, Payload: payload, At: b.now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- sig:
		default:
			b.logger.Debug("dropped signal for slow subscriber", "sub_id", id, "signal", signal)
		}
	}
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels. Later subscriptions get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.closed = true
}
