package core

import (
	"sync"

	"github.com/tarotdesk/relay-server/internal/metrics"
)

// Conn is one live transport-level connection as seen by the core layer.
// Its identity is set exactly once at authentication; its room membership
// is mutated only through Rooms operations.
type Conn struct {
	ID string

	mu       sync.Mutex
	identity *Identity
	room     string
	closed   bool
	events   chan *Event
}

func newConn(id string, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Conn{
		ID:     id,
		events: make(chan *Event, queueSize),
	}
}

// Identity returns the authenticated identity, or nil before the handshake.
func (c *Conn) Identity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// setIdentity records the identity. Returns false if one was already set.
func (c *Conn) setIdentity(id *Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return false
	}
	c.identity = id
	return true
}

// Room returns the current room ID, or "" when unjoined.
func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Conn) setRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

// clearRoom resets the room state only while it still points at the given
// room, so an eviction racing a fresh join never wipes the new membership.
func (c *Conn) clearRoom(room string) {
	c.mu.Lock()
	if c.room == room {
		c.room = ""
	}
	c.mu.Unlock()
}

// Events is the bounded outbound queue consumed by the connection's writer task.
func (c *Conn) Events() <-chan *Event {
	return c.events
}

// Deliver enqueues an event without blocking. When the queue is full the
// oldest pending event is dropped so a slow consumer cannot stall the
// broadcasting task.
func (c *Conn) Deliver(ev *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
			metrics.EventsDropped.Inc()
		default:
		}
	}
}

// close marks the connection dead and closes its event queue. Safe to call once;
// the registry guards against double unregister.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
