package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeAuth      = "auth"
	InboundTypeJoin      = "join"
	InboundTypeLeave     = "leave"
	InboundTypeTyping    = "typing"
	InboundTypeMessage   = "message"
	InboundTypeReaction  = "reaction"
	InboundTypeVoiceJoin = "voice_join"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Server-to-client event names.
const (
	EventAuthenticated  = "authenticated"
	EventAuthError      = "auth_error"
	EventChatJoined     = "chat_joined"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserTyping     = "user_typing"
	EventNewMessage     = "new_message"
	EventMessageSent    = "message_sent"
	EventReactionUpdate = "message_reaction_update"
	EventSessionStatus  = "session_status"
	EventVoiceReady     = "voice_ready"
	EventVoiceStarted   = "voice_started"
	EventError          = "error"
)

// AuthData carries the bearer credential for the handshake.
type AuthData struct {
	Token string `json:"token"`
}

// JoinData requests to join a specific session room.
type JoinData struct {
	Room string `json:"room"`
}

// TypingData flags the sender as typing or not.
type TypingData struct {
	IsTyping bool `json:"is_typing"`
}

// MessageData is a chat message from the client. Kind defaults to "text".
type MessageData struct {
	Kind    string `json:"kind,omitempty"`
	Content string `json:"content"`
}

// ReactionData reacts to a previously delivered message.
type ReactionData struct {
	MessageID string `json:"message_id"`
	Symbol    string `json:"symbol"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AuthenticatedData confirms the handshake.
type AuthenticatedData struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// ChatJoinedData confirms a join to the joining connection.
type ChatJoinedData struct {
	Room string `json:"room"`
}

// UserEventData notifies that a user joined or left a room.
type UserEventData struct {
	Room string `json:"room"`
	User string `json:"user"`
	Name string `json:"name,omitempty"`
}

// TypingEventData carries a (room, user) typing flag.
type TypingEventData struct {
	Room     string `json:"room"`
	User     string `json:"user"`
	IsTyping bool   `json:"is_typing"`
}

// MessageEventData delivers a chat message to room members.
type MessageEventData struct {
	ID      string `json:"id"`
	Room    string `json:"room"`
	Sender  string `json:"sender"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// MessageSentData acknowledges an accepted message to its sender.
type MessageSentData struct {
	MessageID string `json:"message_id"`
	TS        int64  `json:"ts"`
}

// ReactionEventData broadcasts a reaction state change.
type ReactionEventData struct {
	MessageID string `json:"message_id"`
	User      string `json:"user"`
	Symbol    string `json:"symbol"`
	TS        int64  `json:"ts"`
}

// SessionStatusData mirrors an externally-changed session status.
type SessionStatusData struct {
	Room   string `json:"room"`
	Status string `json:"status"`
}

// VoiceReadyData delivers voice join credentials to the requester.
type VoiceReadyData struct {
	URL   string `json:"url"`
	Token string `json:"token"`
	Room  string `json:"room"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
