package core

import (
	"sync"
	"time"

	"github.com/tarotdesk/relay-server/internal/store"
)

// room holds the live membership of one consultation session. All state
// is guarded by the room's own mutex so unrelated rooms never serialize
// against each other. A room removed from the manager's map is marked
// dead under its own mutex first, so a joiner holding a stale pointer
// can detect the removal and resolve the room again.
type room struct {
	id string

	mu      sync.Mutex
	dead    bool
	status  store.SessionStatus
	members map[*Conn]struct{}
	typing  map[string]time.Time // user ID -> expiry deadline
}

func newRoom(id string, status store.SessionStatus) *room {
	return &room{
		id:      id,
		status:  status,
		members: make(map[*Conn]struct{}),
		typing:  make(map[string]time.Time),
	}
}

// addAndAnnounce inserts the connection, records the membership on the
// connection, and broadcasts user_joined to the members that were already
// present, all under the room's mutex so a concurrent removal can never
// interleave. joined is false for an existing member; ok is false when the
// room has been dropped from the manager and the caller must resolve it
// again.
func (r *room) addAndAnnounce(conn *Conn, ident *Identity, status store.SessionStatus) (joined, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dead {
		return false, false
	}
	r.status = status
	if _, exists := r.members[conn]; exists {
		return false, true
	}

	ev := &Event{Kind: EventUserJoined, Room: r.id, User: ident.UserID, Name: ident.DisplayName}
	for member := range r.members {
		member.Deliver(ev)
	}
	r.members[conn] = struct{}{}
	conn.setRoom(r.id)
	return true, true
}

// removeAndAnnounce deletes the connection, clears its user's typing flag
// when no other device remains, and broadcasts user_left to the remaining
// members. Returns whether the connection was a member and whether the
// room is now empty.
func (r *room) removeAndAnnounce(conn *Conn, userID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.clearRoom(r.id)
	if _, exists := r.members[conn]; !exists {
		return false, len(r.members) == 0
	}
	delete(r.members, conn)

	if _, wasTyping := r.typing[userID]; wasTyping && !r.userPresentLocked(userID) {
		delete(r.typing, userID)
		r.broadcastLocked(&Event{Kind: EventUserTyping, Room: r.id, User: userID, Typing: false}, nil)
	}

	r.broadcastLocked(&Event{Kind: EventUserLeft, Room: r.id, User: userID}, nil)
	return true, len(r.members) == 0
}

// setTyping updates the (room, user) typing flag and broadcasts it to the
// other members. Later writes supersede earlier ones.
func (r *room) setTyping(conn *Conn, userID string, on bool, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if on {
		r.typing[userID] = deadline
	} else {
		delete(r.typing, userID)
	}
	r.broadcastLocked(&Event{Kind: EventUserTyping, Room: r.id, User: userID, Typing: on}, conn)
}

// expireTyping drops typing entries past their deadline and announces the stop.
func (r *room) expireTyping(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, deadline := range r.typing {
		if now.After(deadline) {
			delete(r.typing, userID)
			r.broadcastLocked(&Event{Kind: EventUserTyping, Room: r.id, User: userID, Typing: false}, nil)
		}
	}
}

// broadcast delivers an event to every member, optionally excluding one
// connection. Delivery to each recipient is non-blocking; a dead or slow
// member never aborts the rest of the fan-out.
func (r *room) broadcast(ev *Event, except *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(ev, except)
}

func (r *room) broadcastLocked(ev *Event, except *Conn) {
	for member := range r.members {
		if member == except {
			continue
		}
		member.Deliver(ev)
	}
}

// drain marks the room dead and removes every member, announcing the given
// session status first. Used when the booking subsystem ends or locks the
// session. Returns the number of members unseated.
func (r *room) drain(status store.SessionStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dead = true
	r.status = status
	r.broadcastLocked(&Event{Kind: EventSessionStatus, Room: r.id, Status: string(status)}, nil)

	n := len(r.members)
	for member := range r.members {
		member.clearRoom(r.id)
	}
	clear(r.members)
	clear(r.typing)
	return n
}

// markDeadIfEmpty flags the room dead when no members remain, so the
// manager can delete it while late joiners holding the pointer back off.
func (r *room) markDeadIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead || len(r.members) > 0 {
		return false
	}
	r.dead = true
	return true
}

func (r *room) userPresentLocked(userID string) bool {
	for member := range r.members {
		if ident := member.Identity(); ident != nil && ident.UserID == userID {
			return true
		}
	}
	return false
}

func (r *room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
