package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType tags a server-to-client realtime event.
type EventType string

const (
	EventStateUpdate       EventType = "STATE_UPDATE"
	EventParticipantUpdate EventType = "PARTICIPANT_UPDATE"
	EventTimerTick         EventType = "TIMER_TICK"
	EventError             EventType = "ERROR"

	// EventUnknown wraps any inbound payload the client cannot recognize.
	// Dispatch logs these instead of dropping them silently.
	EventUnknown EventType = "UNKNOWN"
)

// Event is the wire envelope for realtime traffic.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode normalizes a raw inbound frame into an Event. It never fails:
// frames that do not parse, or parse without a recognized type, come back
// as EventUnknown carrying the raw bytes.
func Decode(data []byte) Event {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{Type: EventUnknown, Payload: json.RawMessage(data)}
	}
	switch ev.Type {
	case EventStateUpdate, EventParticipantUpdate, EventTimerTick, EventError:
		return ev
	default:
		return Event{Type: EventUnknown, Payload: json.RawMessage(data)}
	}
}

// Parse unmarshals the payload into the typed struct for the event's tag.
func (e *Event) Parse() (any, error) {
	var target any
	switch e.Type {
	case EventStateUpdate:
		target = &StateUpdatePayload{}
	case EventParticipantUpdate:
		target = &ParticipantUpdatePayload{}
	case EventTimerTick:
		target = &TimerTickPayload{}
	case EventError:
		target = &ErrorPayload{}
	default:
		return nil, fmt.Errorf("no payload type for event %q", e.Type)
	}
	if len(e.Payload) == 0 {
		return target, nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", e.Type, err)
	}
	return target, nil
}

// Participant is a roster entry as the server sends it. The is_Leader
// casing is the legacy wire contract, not a typo to fix.
type Participant struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
	IsLeader *Bool  `json:"is_Leader,omitempty"`
}

const (
	RoleHost   = "host"
	RolePlayer = "player"
)

// StateUpdatePayload drives the phase state machine. Data is optional; a
// bare transition must never erase previously known round content.
type StateUpdatePayload struct {
	NextState string     `json:"nextState"`
	Data      *RoundData `json:"data,omitempty"`
}

// RoundData is the merge payload attached to a state transition. Pointer
// fields distinguish "absent" from "present but empty" so the reducer can
// apply field-level keep-previous semantics.
type RoundData struct {
	Topic           *string      `json:"topic,omitempty"`
	Answer          *string      `json:"answer,omitempty"`
	Theme           *string      `json:"theme,omitempty"`
	Hint            *string      `json:"hint,omitempty"`
	SelectedEmojis  []string     `json:"selected_emojis,omitempty"`
	OriginalEmojis  []string     `json:"originalEmojis,omitempty"`
	DisplayedEmojis []string     `json:"displayedEmojis,omitempty"`
	DummyIndex      *int         `json:"dummyIndex,omitempty"`
	DummyEmoji      *string      `json:"dummyEmoji,omitempty"`
	Assignments     []Assignment `json:"assignments,omitempty"`
}

// Assignment maps one participant to the emoji they defend during discussion.
type Assignment struct {
	UserID string `json:"user_id"`
	Emoji  string `json:"emoji"`
}

type ParticipantUpdatePayload struct {
	Participants []Participant `json:"participants"`
}

type TimerTickPayload struct {
	Time Clock `json:"time"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
