package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType tags a client-to-server control message.
type MessageType string

const (
	MsgClientConnected   MessageType = "CLIENT_CONNECTED"   // identity announce after the socket opens
	MsgPing              MessageType = "PING"               // heartbeat keep-alive
	MsgFetchParticipants MessageType = "FETCH_PARTICIPANTS" // request a roster refresh
	MsgWaiting           MessageType = "WAITING"            // host asks for WAITING -> SETTING_TOPIC
	MsgSubmitTopic       MessageType = "SUBMIT_TOPIC"       // round content, mirrors the REST topic action
	MsgAnswering         MessageType = "ANSWERING"          // leader's final guess, mirrors the REST answer action
	MsgChecking          MessageType = "CHECKING"           // host asks for the grading phase
)

// Message is the client-to-server envelope.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a Message with a marshaled payload. A nil payload
// produces a bare envelope (PING, FETCH_PARTICIPANTS).
func NewMessage(msgType MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// ClientConnectedPayload announces local identity and role on open.
type ClientConnectedPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
	IsLeader bool   `json:"is_leader"`
}

// SubmitTopicPayload carries the round content including the decoy split.
// The plain emojis field keeps compatibility with servers that predate the
// original/displayed distinction.
type SubmitTopicPayload struct {
	Topic           string   `json:"topic"`
	Emojis          []string `json:"emojis"`
	OriginalEmojis  []string `json:"originalEmojis"`
	DisplayedEmojis []string `json:"displayedEmojis"`
	DummyIndex      int      `json:"dummyIndex"`
	DummyEmoji      string   `json:"dummyEmoji"`
}

// AnsweringPayload repeats known round content alongside the answer so a
// server restarted mid-round can rebuild its table.
type AnsweringPayload struct {
	Answer          string   `json:"answer"`
	Topic           string   `json:"topic,omitempty"`
	SelectedEmojis  []string `json:"selected_emojis,omitempty"`
	OriginalEmojis  []string `json:"originalEmojis,omitempty"`
	DisplayedEmojis []string `json:"displayedEmojis,omitempty"`
	DummyIndex      *int     `json:"dummyIndex,omitempty"`
	DummyEmoji      string   `json:"dummyEmoji,omitempty"`
	Theme           string   `json:"theme,omitempty"`
	Hint            string   `json:"hint,omitempty"`
}
