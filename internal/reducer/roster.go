// ABOUTME: Lobby roster reducer folding member snapshots into the current roster
// ABOUTME: Replaces the roster on every members update and clears it on lobby deletion

package reducer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/lcu-gateway/internal/events"
	"github.com/2389/lcu-gateway/internal/notify"
)

// Lobby resource URIs.
const (
	LobbyURI        events.Selector = "/lol-lobby/v2/lobby"
	LobbyMembersURI events.Selector = "/lol-lobby/v2/lobby/members"
)

// memberIDField is the opaque player identifier carried by each member record.
const memberIDField = "puuid"

// Subscriber is the part of the dispatcher reducers register with.
type Subscriber interface {
	Subscribe(sel events.Selector, h events.Handler) events.ID
}

// Roster tracks the identifiers of the players in the current lobby.
// Members is safe to call from any goroutine.
type Roster struct {
	mu       sync.RWMutex
	members  []string
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewRoster creates an empty roster. Pass nil logger for default.
func NewRoster(notifier notify.Notifier, logger *slog.Logger) *Roster {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Roster{
		members:  []string{},
		notifier: notifier,
		logger:   logger.With("component", "roster"),
	}
}

// Register subscribes the roster to the members snapshot and lobby deletion
// selectors.
func (r *Roster) Register(s Subscriber) []events.ID {
	return []events.ID{
		s.Subscribe(LobbyMembersURI, events.HandlerFunc(r.handleMembers)),
		s.Subscribe(LobbyURI, events.HandlerFunc(r.handleLobby)),
	}
}

// Members returns a copy of the current roster in payload order.
func (r *Roster) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Roster) handleMembers(ctx context.Context, ev events.Event) (events.Directive, error) {
	if ev.Type == events.Delete {
		r.replace(nil)
		return events.Continue, nil
	}

	records, err := ev.Records()
	if err != nil {
		r.diagnose(ev, err)
		return events.Continue, nil
	}

	members := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id, err := rec.String(memberIDField)
		if err != nil {
			r.diagnose(ev, err)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	r.replace(members)
	return events.Continue, nil
}

func (r *Roster) handleLobby(ctx context.Context, ev events.Event) (events.Directive, error) {
	if ev.Type == events.Delete {
		r.replace(nil)
	}
	return events.Continue, nil
}

// replace swaps in a full snapshot and publishes it.
func (r *Roster) replace(members []string) {
	if members == nil {
		members = []string{}
	}
	r.mu.Lock()
	r.members = members
	published := make([]string, len(members))
	copy(published, members)
	r.mu.Unlock()

	r.logger.Debug("roster updated", "members", len(published))
	r.notifier.Emit(notify.SignalLobby, published)
}

func (r *Roster) diagnose(ev events.Event, err error) {
	r.logger.Warn("skipping malformed lobby member data", "uri", ev.URI, "error", err)
	r.notifier.Emit(notify.SignalDiagnostic, notify.Diagnostic{
		Source:   "roster",
		Selector: ev.URI,
		Message:  err.Error(),
	})
}
