// ABOUTME: WAMP-style frame codec used by the control plane's event stream
// ABOUTME: Encodes subscribe requests and decodes event frames into events.Event

package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/lcu-gateway/internal/events"
)

// Frame opcodes used on the event stream.
const (
	OpSubscribe = 5
	OpEvent     = 8
)

// DefaultLabel is the subscription label under which the control plane
// publishes every JSON API change.
const DefaultLabel = "OnJsonApiEvent"

// errNotEvent marks frames that are valid but carry no event.
var errNotEvent = errors.New("not an event frame")

// eventBody is the third element of an event frame.
type eventBody struct {
	URI       string          `json:"uri"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// encodeSubscribe builds the frame requesting events for label.
func encodeSubscribe(label string) ([]byte, error) {
	return json.Marshal([]any{OpSubscribe, label})
}

// decodeFrame parses one text message. Frames with another opcode return
// errNotEvent; anything unparsable returns a descriptive error.
func decodeFrame(msg []byte) (events.Event, error) {
	if len(msg) == 0 {
		return events.Event{}, errNotEvent
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(msg, &parts); err != nil {
		return events.Event{}, fmt.Errorf("decoding frame: %w", err)
	}
	if len(parts) == 0 {
		return events.Event{}, errors.New("empty frame")
	}

	var op int
	if err := json.Unmarshal(parts[0], &op); err != nil {
		return events.Event{}, fmt.Errorf("decoding opcode: %w", err)
	}
	if op != OpEvent {
		return events.Event{}, errNotEvent
	}
	if len(parts) < 3 {
		return events.Event{}, fmt.Errorf("event frame has %d elements, want 3", len(parts))
	}

	var label string
	if err := json.Unmarshal(parts[1], &label); err != nil {
		return events.Event{}, fmt.Errorf("decoding label: %w", err)
	}

	var body eventBody
	if err := json.Unmarshal(parts[2], &body); err != nil {
		return events.Event{}, fmt.Errorf("decoding event body: %w", err)
	}
	if body.URI == "" {
		return events.Event{}, errors.New("event body has no uri")
	}

	return events.Event{
		Kind:  op,
		Label: label,
		URI:   body.URI,
		Type:  events.EventType(body.EventType),
		Data:  body.Data,
	}, nil
}
