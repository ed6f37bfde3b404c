package domain

import "encoding/json"

// Event types pushed by the gateway.
const (
	EventConnected  = "connected"
	EventRoomJoined = "room_joined"
	EventNewMessage = "new_message"
	EventUserTyping = "user_typing"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventError      = "error"
	EventAck        = "ack"
)

// Command types emitted by clients.
const (
	CommandJoinRoom      = "join_room"
	CommandLeaveRoom     = "leave_room"
	CommandSendMessage   = "send_message"
	CommandTypingStart   = "typing_start"
	CommandTypingStop    = "typing_stop"
	CommandDeleteMessage = "admin_delete_message"
)

// Envelope is the frame carried by every transport in both directions. Data
// holds the event- or command-specific payload. AckID correlates a command
// with the gateway's ack frame for it.
type Envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ack_id,omitempty"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(eventType string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Data: data}, nil
}

type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

type RoomJoinedPayload struct {
	RoomID      string        `json:"room_id"`
	RoomName    string        `json:"room_name"`
	History     []ChatMessage `json:"history"`
	OnlineUsers []User        `json:"online_users"`
}

type TypingPayload struct {
	RoomID string `json:"room_id"`
	Typing bool   `json:"typing"`
	User   User   `json:"user"`
}

type PresencePayload struct {
	RoomID string `json:"room_id"`
	User   User   `json:"user"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type AckPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"room_id"`
}

type SendMessagePayload struct {
	RoomID    string `json:"room_id"`
	Content   string `json:"content"`
	RepliedTo string `json:"replied_to,omitempty"`
}

type DeleteMessagePayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}
