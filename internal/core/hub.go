package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// HubConfig tunes the in-memory relay state.
type HubConfig struct {
	// SendQueue bounds each connection's outbound event queue.
	SendQueue int
	// TypingTTL expires a typing flag that never saw an explicit stop.
	TypingTTL time.Duration
}

// Hub wires the registry, room manager, router, and presence tracker into
// the single seam the transport layer talks to.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	router   *Router
	presence *Presence
}

// HubDeps are the external collaborators the relay core consumes.
type HubDeps struct {
	Verifier  Verifier
	Sessions  SessionSource
	Messages  MessageSink
	Reactions ReactionSink
	Profiles  PresenceSink
	Voice     VoiceEngine // optional
}

// NewHub constructs the relay core.
func NewHub(deps HubDeps, cfg HubConfig, logger *zerolog.Logger) *Hub {
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = 6 * time.Second
	}
	rooms := NewRooms(deps.Sessions, logger)
	return &Hub{
		registry: NewRegistry(deps.Verifier, cfg.SendQueue, logger),
		rooms:    rooms,
		router:   NewRouter(rooms, deps.Messages, deps.Reactions, deps.Voice, cfg.TypingTTL, logger),
		presence: NewPresence(rooms, deps.Profiles, time.Second, logger),
	}
}

// Run drives background work until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.presence.Run(ctx)
}

// Register allocates a new unauthenticated connection.
func (h *Hub) Register() *Conn {
	return h.registry.Register()
}

// Authenticate performs the credential handshake for the connection.
func (h *Hub) Authenticate(ctx context.Context, conn *Conn, credential string) (*Identity, error) {
	return h.registry.Authenticate(ctx, conn, credential)
}

// Join moves the connection into the given room after a fresh authorization check.
func (h *Hub) Join(ctx context.Context, conn *Conn, roomID string) error {
	return h.rooms.Join(ctx, conn, roomID)
}

// Leave removes the connection from its current room, if any.
func (h *Hub) Leave(conn *Conn) {
	h.rooms.Leave(conn)
}

// Typing relays a typing flag to the connection's room.
func (h *Hub) Typing(conn *Conn, on bool) error {
	return h.router.Typing(conn, on)
}

// SendMessage routes a chat message and returns the sender's ack.
func (h *Hub) SendMessage(ctx context.Context, conn *Conn, kind, content string) (*Ack, error) {
	return h.router.SendMessage(ctx, conn, kind, content)
}

// React routes a message reaction.
func (h *Hub) React(ctx context.Context, conn *Conn, messageID, symbol string) error {
	return h.router.React(ctx, conn, messageID, symbol)
}

// VoiceJoin mints voice-reading credentials for the connection.
func (h *Hub) VoiceJoin(ctx context.Context, conn *Conn) (*VoiceInfo, error) {
	return h.router.VoiceJoin(ctx, conn)
}

// RefreshSession mirrors an externally-changed session status into the room.
func (h *Hub) RefreshSession(ctx context.Context, roomID string) (string, error) {
	status, err := h.rooms.Refresh(ctx, roomID)
	return string(status), err
}

// Unregister tears the connection down: leaves its room (broadcasting
// user_left), removes it from the registry, and records last-seen.
func (h *Hub) Unregister(conn *Conn) {
	ident := conn.Identity()
	h.rooms.Leave(conn)
	h.registry.Unregister(conn)
	h.presence.Disconnected(ident)
}

// Stats reports live connection and room counts.
func (h *Hub) Stats() (conns, rooms, members int) {
	rooms, members = h.rooms.Stats()
	return h.registry.Len(), rooms, members
}
