// ABOUTME: Subscription registry mapping selectors to ordered handler lists
// ABOUTME: Registration order per selector is invocation order

package events

import (
	"github.com/google/uuid"
)

// ID identifies one subscription.
type ID string

// Subscription is a registered handler for one selector.
type Subscription struct {
	ID       ID
	Selector Selector
	Handler  Handler
}

// Registry holds the active subscriptions. It is not safe for concurrent use:
// the Dispatcher serializes all access under its lock.
type Registry struct {
	bySelector map[Selector][]Subscription
	index      map[ID]Selector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bySelector: make(map[Selector][]Subscription),
		index:      make(map[ID]Selector),
	}
}

// Add appends a subscription after any existing ones for the same selector.
func (r *Registry) Add(sel Selector, h Handler) ID {
	id := ID(uuid.New().String())
	r.bySelector[sel] = append(r.bySelector[sel], Subscription{ID: id, Selector: sel, Handler: h})
	r.index[id] = sel
	return id
}

// Remove deletes a subscription. It reports whether the ID was present.
func (r *Registry) Remove(id ID) bool {
	sel, ok := r.index[id]
	if !ok {
		return false
	}
	delete(r.index, id)

	subs := r.bySelector[sel]
	for i, s := range subs {
		if s.ID != id {
			continue
		}
		// Build a new slice so snapshots handed out by Match stay intact.
		next := make([]Subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(r.bySelector, sel)
		} else {
			r.bySelector[sel] = next
		}
		break
	}
	return true
}

// Contains reports whether the subscription is registered.
func (r *Registry) Contains(id ID) bool {
	_, ok := r.index[id]
	return ok
}

// Match returns the subscriptions for sel in registration order. The returned
// slice is a copy.
func (r *Registry) Match(sel Selector) []Subscription {
	subs := r.bySelector[sel]
	if len(subs) == 0 {
		return nil
	}
	out := make([]Subscription, len(subs))
	copy(out, subs)
	return out
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	return len(r.index)
}
