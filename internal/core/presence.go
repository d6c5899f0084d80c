package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const lastSeenTimeout = 5 * time.Second

// Presence expires stale typing flags and records last-seen timestamps
// when connections go away.
type Presence struct {
	rooms    *Rooms
	profiles PresenceSink
	interval time.Duration
	log      *zerolog.Logger
}

// NewPresence builds the presence tracker.
func NewPresence(rooms *Rooms, profiles PresenceSink, sweepInterval time.Duration, logger *zerolog.Logger) *Presence {
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}
	return &Presence{
		rooms:    rooms,
		profiles: profiles,
		interval: sweepInterval,
		log:      logger,
	}
}

// Run drives the typing-expiry sweeper until the context is cancelled.
func (p *Presence) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			p.rooms.ExpireTyping(now)
		case <-ctx.Done():
			return
		}
	}
}

// Disconnected records the user's last-seen timestamp in the background.
// Best effort: a failure is logged and never blocks connection teardown.
func (p *Presence) Disconnected(ident *Identity) {
	if ident == nil || p.profiles == nil {
		return
	}
	userID := ident.UserID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lastSeenTimeout)
		defer cancel()
		if err := p.profiles.TouchLastSeen(ctx, userID, time.Now().UTC()); err != nil {
			p.log.Warn().Err(err).Str("user_id", userID).Msg("update last seen")
		}
	}()
}
