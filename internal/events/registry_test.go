// ABOUTME: Tests for the subscription registry and payload accessors
// ABOUTME: Covers ordering, removal, snapshot stability, and DataIntegrityError shapes

package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noop = HandlerFunc(func(context.Context, Event) (Directive, error) { return Continue, nil })

func TestRegistry_AddPreservesOrder(t *testing.T) {
	r := NewRegistry()
	a := r.Add("/a", noop)
	b := r.Add("/a", noop)
	c := r.Add("/b", noop)

	subs := r.Match("/a")
	require.Len(t, subs, 2)
	assert.Equal(t, a, subs[0].ID)
	assert.Equal(t, b, subs[1].ID)
	assert.NotEqual(t, a, b)

	assert.Equal(t, 3, r.Len())
	assert.Len(t, r.bySelector, 2)
	assert.True(t, r.Contains(c))
	assert.Nil(t, r.Match("/missing"))
}

func TestRegistry_RemoveKeepsSnapshotsIntact(t *testing.T) {
	r := NewRegistry()
	a := r.Add("/a", noop)
	b := r.Add("/a", noop)

	snapshot := r.Match("/a")
	require.True(t, r.Remove(a))

	assert.Len(t, snapshot, 2, "earlier snapshot must not change")
	assert.Equal(t, a, snapshot[0].ID)

	remaining := r.Match("/a")
	require.Len(t, remaining, 1)
	assert.Equal(t, b, remaining[0].ID)
	assert.False(t, r.Contains(a))
	assert.False(t, r.Remove(a), "second remove reports absence")
}

func TestRegistry_RemoveLastDropsSelector(t *testing.T) {
	r := NewRegistry()
	id := r.Add("/a", noop)
	r.Remove(id)

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.bySelector)
}

func TestEvent_RecordsAndStringField(t *testing.T) {
	ev := Event{
		URI:  "/lol-lobby/v2/lobby/members",
		Type: Update,
		Data: []byte(`[{"puuid":"p1"},{"summonerId":2},{"puuid":""},{"puuid":7},"junk"]`),
	}

	records, err := ev.Records()
	require.NoError(t, err)
	require.Len(t, records, 5)

	id, err := records[0].String("puuid")
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	for i, reason := range map[int]string{1: "is missing", 2: "is empty", 3: "is not a string", 4: "is not an object"} {
		_, err := records[i].String("puuid")
		require.ErrorIs(t, err, ErrDataIntegrity, "record %d", i)
		var dErr *DataIntegrityError
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, i, dErr.Index)
		assert.Equal(t, reason, dErr.Reason)
	}
	assert.Equal(t, `{"puuid":"p1"}`, records[0].Raw())
}

func TestEvent_RecordsRejectsNonArray(t *testing.T) {
	for name, data := range map[string]string{
		"object":  `{"members":[]}`,
		"invalid": `[{"puuid":`,
		"null":    `null`,
	} {
		t.Run(name, func(t *testing.T) {
			ev := Event{URI: "/x", Data: []byte(data)}
			_, err := ev.Records()
			var dErr *DataIntegrityError
			require.ErrorAs(t, err, &dErr)
			assert.Equal(t, -1, dErr.Index)
		})
	}
}

func TestDirective_String(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "unsubscribe", Unsubscribe.String())
	assert.Equal(t, "unknown", Directive(9).String())
}
