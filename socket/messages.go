package socket

import "encoding/json"

// Event names on the realtime channel. These are part of the wire protocol
// shared with the editor frontend and must not change.
const (
	// client -> relay
	EventJoinDocument   = "join-document"
	EventSendChanges    = "send-changes"
	EventCursorPosition = "cursor-position"

	// relay -> client
	EventReceiveChanges = "receive-changes"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventCursorUpdate   = "cursor-update"
	EventError          = "error"
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	DocumentID string `json:"documentId"`
}

type ChangePayload struct {
	Content    string `json:"content"`
	DocumentID string `json:"documentId"`
}

// CursorPayload relays position/selection opaquely; the relay never
// interprets them.
type CursorPayload struct {
	DocumentID string          `json:"documentId"`
	Position   json.RawMessage `json:"position"`
	Selection  json.RawMessage `json:"selection"`
}

type ReceiveChangesPayload struct {
	Content    string `json:"content"`
	DocumentID string `json:"documentId"`
	SenderID   string `json:"senderId,omitempty"`
}

type PresencePayload struct {
	SocketID         string `json:"socketId"`
	ParticipantCount int    `json:"participantCount"`
}

type CursorUpdatePayload struct {
	SocketID  string          `json:"socketId"`
	Position  json.RawMessage `json:"position"`
	Selection json.RawMessage `json:"selection"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessage(event string, payload any) (WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WSMessage{}, err
	}
	return WSMessage{Event: event, Data: data}, nil
}
