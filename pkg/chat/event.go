// Package chat assembles a live assistant message from the session server's
// domain event feed. It holds the per-send state machine (the Assembler)
// and the typed domain events it folds, decoded from raw SSE frames.
package chat

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/spool/pkg/sse"
)

// Event type names as they appear on the wire, either in the SSE "event:"
// field or in the payload's "type" field.
const (
	EventMessageCreated   = "message.created"
	EventPartCreated      = "part.created"
	EventPartUpdated      = "part.updated"
	EventMessageCompleted = "message.completed"
	EventError            = "error"
)

// Event is a decoded domain event describing message/part lifecycle.
// Concrete types: MessageCreated, PartCreated, PartUpdated,
// MessageCompleted, StreamError.
type Event interface {
	eventType() string
}

// MessageCreated opens a new assistant message accumulator.
type MessageCreated struct {
	MessageID string `json:"messageID"`
	SessionID string `json:"sessionID"`
	Role      string `json:"role"`
}

// PartCreated appends an empty part of the given kind to the open
// accumulator, preserving emission order.
type PartCreated struct {
	PartID    string `json:"partID"`
	MessageID string `json:"messageID"`
	SessionID string `json:"sessionID"`
	PartType  string `json:"partType"`
}

// PartUpdated appends an incremental fragment to an existing part.
type PartUpdated struct {
	PartID    string `json:"partID"`
	MessageID string `json:"messageID"`
	SessionID string `json:"sessionID"`
	Delta     Delta  `json:"delta"`
}

// Delta is the incremental payload of a part.updated event. Text growth
// is append-only.
type Delta struct {
	Text string `json:"text,omitempty"`
}

// MessageCompleted seals the open accumulator. No further mutation is
// valid afterward.
type MessageCompleted struct {
	MessageID string `json:"messageID"`
	SessionID string `json:"sessionID"`
}

// StreamError marks the stream failed on the server side. The accumulator
// is discarded, never committed.
type StreamError struct {
	Err  string `json:"error"`
	Code string `json:"code,omitempty"`
}

func (MessageCreated) eventType() string   { return EventMessageCreated }
func (PartCreated) eventType() string      { return EventPartCreated }
func (PartUpdated) eventType() string      { return EventPartUpdated }
func (MessageCompleted) eventType() string { return EventMessageCompleted }
func (StreamError) eventType() string      { return EventError }

// ProtocolError indicates a frame whose payload could not be decoded into
// a known domain event. The frame is dropped and the stream continues.
type ProtocolError struct {
	Frame sse.Event
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("chat: malformed %q frame: %v", e.Frame.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// EncodeEvent encodes a domain event as an SSE frame with the event type
// in the "event:" field and the JSON payload in "data:". The inverse of
// DecodeEvent.
func EncodeEvent(ev Event) (sse.Event, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return sse.Event{}, fmt.Errorf("chat: encoding %q event: %w", ev.eventType(), err)
	}
	return sse.Event{Type: ev.eventType(), Data: string(data)}, nil
}

// DecodeEvent decodes a raw SSE frame into a domain event. The event type
// comes from the frame's "event:" field, falling back to a "type" field in
// the JSON payload. Unknown or malformed frames yield a *ProtocolError.
func DecodeEvent(frame sse.Event) (Event, error) {
	kind := frame.Type
	if kind == "" {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(frame.Data), &envelope); err != nil {
			return nil, &ProtocolError{Frame: frame, Err: err}
		}
		kind = envelope.Type
	}

	decode := func(v Event) (Event, error) {
		if err := json.Unmarshal([]byte(frame.Data), v); err != nil {
			return nil, &ProtocolError{Frame: frame, Err: err}
		}
		return v, nil
	}

	switch kind {
	case EventMessageCreated:
		ev := &MessageCreated{}
		return decode(ev)
	case EventPartCreated:
		ev := &PartCreated{}
		return decode(ev)
	case EventPartUpdated:
		ev := &PartUpdated{}
		return decode(ev)
	case EventMessageCompleted:
		ev := &MessageCompleted{}
		return decode(ev)
	case EventError:
		ev := &StreamError{}
		return decode(ev)
	default:
		return nil, &ProtocolError{Frame: frame, Err: fmt.Errorf("unknown event type %q", kind)}
	}
}
