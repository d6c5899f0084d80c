package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/metrics"
	"github.com/tarotdesk/relay-server/internal/store"
)

// Rooms maintains the set of live rooms and is the only component allowed
// to mutate room membership. Authorization is re-fetched from the booking
// subsystem on every join attempt: participant lists and session status
// can change between authentication and join.
type Rooms struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	sessions SessionSource
	log      *zerolog.Logger
}

// NewRooms builds the room manager backed by the given session source.
func NewRooms(sessions SessionSource, logger *zerolog.Logger) *Rooms {
	return &Rooms{
		rooms:    make(map[string]*room),
		sessions: sessions,
		log:      logger,
	}
}

// Join makes the connection a member of the given room after a fresh
// authorization check. A connection already in another room leaves it
// first; at most one membership per connection holds at all times.
func (m *Rooms) Join(ctx context.Context, conn *Conn, roomID string) error {
	ident := conn.Identity()
	if ident == nil {
		return NewError(ErrCodeUnauthenticated, "authenticate before joining")
	}

	sess, err := m.sessions.GetSession(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.JoinsRejected.Inc()
		return NewError(ErrCodeSessionNotFound, "session not found")
	}
	if err != nil {
		return NewError(ErrCodePersistence, fmt.Sprintf("fetch session: %v", err))
	}
	if !sess.Status.Open() {
		metrics.JoinsRejected.Inc()
		return NewError(ErrCodeSessionUnavailable, fmt.Sprintf("session is %s", sess.Status))
	}
	if !sess.HasParticipant(ident.UserID) {
		metrics.JoinsRejected.Inc()
		return NewError(ErrCodeNotAParticipant, "not a participant of this session")
	}

	if prev := conn.Room(); prev != "" && prev != roomID {
		m.leave(conn, prev, ident.UserID)
	}

	// A resolved room can be dropped by a concurrent last-leave or refresh
	// before the insert takes its lock; a dead room refuses the insert and
	// the lookup runs again.
	for {
		r := m.getOrCreate(roomID, sess.Status)
		joined, ok := r.addAndAnnounce(conn, ident, sess.Status)
		if !ok {
			continue
		}
		if joined {
			m.log.Info().
				Str("conn_id", conn.ID).
				Str("user_id", ident.UserID).
				Str("room", roomID).
				Msg("joined room")
		}
		return nil
	}
}

// Leave removes the connection from its current room, broadcasting
// user_left to the remaining members. No-op for an unjoined connection.
func (m *Rooms) Leave(conn *Conn) {
	roomID := conn.Room()
	if roomID == "" {
		return
	}
	userID := ""
	if ident := conn.Identity(); ident != nil {
		userID = ident.UserID
	}
	m.leave(conn, roomID, userID)
}

func (m *Rooms) leave(conn *Conn, roomID, userID string) {
	m.mu.RLock()
	r := m.rooms[roomID]
	m.mu.RUnlock()

	if r == nil {
		conn.clearRoom(roomID)
		return
	}

	removed, empty := r.removeAndAnnounce(conn, userID)
	if removed {
		m.log.Debug().
			Str("conn_id", conn.ID).
			Str("user_id", userID).
			Str("room", roomID).
			Msg("left room")
	}
	if empty {
		m.dropIfEmpty(roomID)
	}
}

// Refresh re-fetches the session record and mirrors its status to the
// room's members. An ended, locked, or deleted session closes the room
// and unseats everyone. Called by the booking subsystem via the internal
// HTTP surface; joins re-check on their own regardless.
func (m *Rooms) Refresh(ctx context.Context, roomID string) (store.SessionStatus, error) {
	sess, err := m.sessions.GetSession(ctx, roomID)
	status := store.SessionEnded
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Treat a deleted session like an ended one.
	case err != nil:
		return "", fmt.Errorf("fetch session: %w", err)
	default:
		status = sess.Status
	}

	if status.Open() {
		m.mu.RLock()
		r := m.rooms[roomID]
		m.mu.RUnlock()
		if r != nil {
			r.broadcast(&Event{Kind: EventSessionStatus, Room: roomID, Status: string(status)}, nil)
		}
		return status, nil
	}

	// Drain and delete under the map lock so no joiner can resolve the
	// room between the two steps.
	m.mu.Lock()
	r := m.rooms[roomID]
	unseated := 0
	if r != nil {
		unseated = r.drain(status)
		delete(m.rooms, roomID)
		metrics.RoomsActive.Dec()
	}
	m.mu.Unlock()

	if r != nil {
		m.log.Info().
			Str("room", roomID).
			Str("status", string(status)).
			Int("unseated", unseated).
			Msg("room closed")
	}
	return status, nil
}

// roomFor resolves the room the connection is currently a member of.
func (m *Rooms) roomFor(conn *Conn) (*room, *Identity, error) {
	ident := conn.Identity()
	if ident == nil {
		return nil, nil, NewError(ErrCodeUnauthenticated, "authenticate first")
	}
	roomID := conn.Room()
	if roomID == "" {
		return nil, nil, NewError(ErrCodeNotInRoom, "join a session first")
	}

	m.mu.RLock()
	r := m.rooms[roomID]
	m.mu.RUnlock()
	if r == nil {
		return nil, nil, NewError(ErrCodeNotInRoom, "join a session first")
	}
	return r, ident, nil
}

// ExpireTyping sweeps all rooms for typing flags past their deadline.
func (m *Rooms) ExpireTyping(now time.Time) {
	m.mu.RLock()
	rooms := make([]*room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		r.expireTyping(now)
	}
}

// Stats returns the number of live rooms and joined connections.
func (m *Rooms) Stats() (rooms, members int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		members += r.size()
	}
	return len(m.rooms), members
}

func (m *Rooms) getOrCreate(roomID string, status store.SessionStatus) *room {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		return r
	}
	r := newRoom(roomID, status)
	m.rooms[roomID] = r
	metrics.RoomsActive.Inc()
	return r
}

// dropIfEmpty marks an empty room dead and deletes it, both under the map
// lock, so a stale pointer handed out earlier can never be re-populated.
func (m *Rooms) dropIfEmpty(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok && r.markDeadIfEmpty() {
		delete(m.rooms, roomID)
		metrics.RoomsActive.Dec()
	}
}
