package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Role classifies a platform profile.
type Role string

const (
	RoleClient  Role = "client"
	RoleAdvisor Role = "advisor"
	RoleAdmin   Role = "admin"
)

// Profile is the platform-side view of a user, cached on the connection
// at authentication time.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Role        Role
	Active      bool
	LastSeenAt  *time.Time
	CreatedAt   time.Time
}

// SessionStatus mirrors the booking subsystem's session lifecycle.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionEnded  SessionStatus = "ended"
	SessionLocked SessionStatus = "locked"
)

// Open reports whether the session still accepts joins. Paused sessions
// keep their chat open; locked and ended ones do not.
func (s SessionStatus) Open() bool {
	return s == SessionActive || s == SessionPaused
}

// Session is a booked consultation between a client and an advisor.
// The relay only reads these records; the booking subsystem owns them.
type Session struct {
	ID           string
	Status       SessionStatus
	Participants []string
	CreatedAt    time.Time
}

// HasParticipant reports whether userID is in the authorized set.
func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is a persisted chat message.
type Message struct {
	ID        string
	SessionID string
	SenderID  string
	Kind      string
	Content   string
	CreatedAt time.Time
}

// Reaction associates a reaction symbol with a message. One row per
// (message, user); a new symbol from the same user replaces the old one.
type Reaction struct {
	MessageID string
	UserID    string
	Symbol    string
	UpdatedAt time.Time
}

// ProfileStore handles profile reads and presence writes.
type ProfileStore interface {
	// GetProfile retrieves a profile by user ID.
	GetProfile(ctx context.Context, id string) (*Profile, error)

	// TouchLastSeen updates the user's last-seen timestamp.
	TouchLastSeen(ctx context.Context, id string, ts time.Time) error
}

// SessionStore handles session authorization reads.
type SessionStore interface {
	// GetSession retrieves a session and its authorized participant set.
	GetSession(ctx context.Context, id string) (*Session, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and returns its assigned ID.
	SaveMessage(ctx context.Context, msg *Message) (string, error)
}

// ReactionStore handles reaction persistence.
type ReactionStore interface {
	// SaveReaction upserts a reaction keyed on (message_id, user_id).
	SaveReaction(ctx context.Context, r *Reaction) error
}

// SeedStore holds the write paths owned by the platform side. The relay
// never calls these at runtime; they exist for tests and dev tooling.
type SeedStore interface {
	CreateProfile(ctx context.Context, p *Profile) error
	CreateSession(ctx context.Context, s *Session) error
	AddParticipant(ctx context.Context, sessionID, userID string) error
	SetSessionStatus(ctx context.Context, sessionID string, status SessionStatus) error
}

// Store aggregates all storage interfaces.
type Store interface {
	ProfileStore
	SessionStore
	MessageStore
	ReactionStore
	SeedStore

	// Close closes the underlying database connection.
	Close() error
}
