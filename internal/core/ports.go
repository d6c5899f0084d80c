package core

import (
	"context"
	"time"

	"github.com/tarotdesk/relay-server/internal/store"
)

// Verifier exchanges an opaque bearer credential for a verified identity.
// Implementations return *Error with an auth family code on rejection.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// SessionSource is the booking subsystem's authorization record, re-fetched
// on every join attempt so externally-changed status is never stale.
type SessionSource interface {
	GetSession(ctx context.Context, id string) (*store.Session, error)
}

// MessageSink persists accepted chat messages.
type MessageSink interface {
	SaveMessage(ctx context.Context, msg *store.Message) (string, error)
}

// ReactionSink persists reactions, idempotent per (message, user).
type ReactionSink interface {
	SaveReaction(ctx context.Context, r *store.Reaction) error
}

// PresenceSink records last-seen timestamps, best effort.
type PresenceSink interface {
	TouchLastSeen(ctx context.Context, userID string, ts time.Time) error
}

// VoiceEngine mints join credentials for a session's voice reading.
type VoiceEngine interface {
	JoinInfo(ctx context.Context, room, identity, name string) (*VoiceInfo, error)
}
