package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventAuthenticated confirms the credential handshake to the connection.
	EventAuthenticated EventKind = iota
	// EventChatJoined confirms a join to the joining connection.
	EventChatJoined
	// EventUserJoined notifies room members that a connection joined.
	EventUserJoined
	// EventUserLeft notifies room members that a connection left.
	EventUserLeft
	// EventUserTyping carries a typing flag for a (room, user) pair.
	EventUserTyping
	// EventNewMessage delivers a chat message to room members other than the sender.
	EventNewMessage
	// EventMessageSent acknowledges an accepted message to its sender.
	EventMessageSent
	// EventReactionUpdate notifies all room members, reactor included, of a reaction.
	EventReactionUpdate
	// EventSessionStatus mirrors an externally-changed session status to members.
	EventSessionStatus
	// EventVoiceReady delivers voice join credentials to the requester.
	EventVoiceReady
	// EventVoiceStarted notifies other members that a user joined the voice reading.
	EventVoiceStarted
	// EventError notifies the initiating connection about a domain error.
	EventError
)

// Identity is the immutable profile snapshot attached to a connection
// when it authenticates.
type Identity struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Role        string
}

// Message is the relay-facing view of a chat message, sender name included.
type Message struct {
	ID         string
	Room       string
	SenderID   string
	SenderName string
	Kind       string
	Content    string
	SentAt     time.Time
}

// Ack acknowledges an accepted message to its sender.
type Ack struct {
	MessageID string
	SentAt    time.Time
}

// Reaction describes a reaction broadcast.
type Reaction struct {
	MessageID string
	UserID    string
	Symbol    string
	At        time.Time
}

// VoiceInfo carries credentials for joining a voice reading.
type VoiceInfo struct {
	URL   string
	Token string
	Room  string
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	User     string
	Name     string
	Typing   bool
	Status   string
	Identity *Identity
	Message  *Message
	Ack      *Ack
	Reaction *Reaction
	Voice    *VoiceInfo
	Error    *Error
}
