package core

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/metrics"
	"github.com/tarotdesk/relay-server/internal/store"
)

// Message kinds the router accepts. Everything else is a malformed payload.
const (
	MessageKindText     = "text"
	MessageKindCardDraw = "card_draw"
	MessageKindImage    = "image"
)

const maxContentLen = 4096

// Router validates inbound events and fans them out to the sender's
// current room. Every operation requires live room membership.
type Router struct {
	rooms     *Rooms
	messages  MessageSink
	reactions ReactionSink
	voice     VoiceEngine // nil when voice readings are not configured
	typingTTL time.Duration
	log       *zerolog.Logger
}

// NewRouter builds the event router.
func NewRouter(rooms *Rooms, messages MessageSink, reactions ReactionSink, voice VoiceEngine, typingTTL time.Duration, logger *zerolog.Logger) *Router {
	return &Router{
		rooms:     rooms,
		messages:  messages,
		reactions: reactions,
		voice:     voice,
		typingTTL: typingTTL,
		log:       logger,
	}
}

// Typing broadcasts the sender's typing flag to the other room members.
// Not persisted; a later flag from the same user supersedes this one, and
// the presence sweeper expires stale starts.
func (rt *Router) Typing(conn *Conn, on bool) error {
	r, ident, err := rt.rooms.roomFor(conn)
	if err != nil {
		return err
	}
	r.setTyping(conn, ident.UserID, on, time.Now().Add(rt.typingTTL))
	return nil
}

// SendMessage validates the payload, persists it through the external
// collaborator, and broadcasts new_message to every member except the
// sender. The returned ack carries the assigned ID and server timestamp.
func (rt *Router) SendMessage(ctx context.Context, conn *Conn, kind, content string) (*Ack, error) {
	r, ident, err := rt.rooms.roomFor(conn)
	if err != nil {
		return nil, err
	}

	if kind == "" {
		kind = MessageKindText
	}
	switch kind {
	case MessageKindText:
		content = strings.TrimSpace(content)
	case MessageKindCardDraw, MessageKindImage:
		// Content is a card spread reference or an upload reference.
	default:
		return nil, NewError(ErrCodeMalformedPayload, "unknown message kind")
	}
	if content == "" {
		return nil, NewError(ErrCodeMalformedPayload, "message content is required")
	}
	if len(content) > maxContentLen {
		return nil, NewError(ErrCodeMalformedPayload, "message content too long")
	}

	sentAt := time.Now().UTC()
	id, err := rt.messages.SaveMessage(ctx, &store.Message{
		SessionID: r.id,
		SenderID:  ident.UserID,
		Kind:      kind,
		Content:   content,
		CreatedAt: sentAt,
	})
	if err != nil {
		rt.log.Error().Err(err).Str("room", r.id).Str("user_id", ident.UserID).Msg("persist message")
		return nil, NewError(ErrCodePersistence, "message could not be stored")
	}

	r.broadcast(&Event{
		Kind: EventNewMessage,
		Room: r.id,
		Message: &Message{
			ID:         id,
			Room:       r.id,
			SenderID:   ident.UserID,
			SenderName: ident.DisplayName,
			Kind:       kind,
			Content:    content,
			SentAt:     sentAt,
		},
	}, conn)

	metrics.MessagesRouted.Inc()
	return &Ack{MessageID: id, SentAt: sentAt}, nil
}

// React persists the reaction, then broadcasts message_reaction_update to
// all members, the reactor included, so every device converges on the
// same state. A persistence failure reaches the caller only; nothing is
// broadcast.
func (rt *Router) React(ctx context.Context, conn *Conn, messageID, symbol string) error {
	r, ident, err := rt.rooms.roomFor(conn)
	if err != nil {
		return err
	}

	symbol = strings.TrimSpace(symbol)
	if messageID == "" || symbol == "" {
		return NewError(ErrCodeMalformedPayload, "message_id and symbol are required")
	}
	if len(symbol) > 16 {
		return NewError(ErrCodeMalformedPayload, "symbol too long")
	}

	at := time.Now().UTC()
	if err := rt.reactions.SaveReaction(ctx, &store.Reaction{
		MessageID: messageID,
		UserID:    ident.UserID,
		Symbol:    symbol,
		UpdatedAt: at,
	}); err != nil {
		rt.log.Error().Err(err).Str("message_id", messageID).Str("user_id", ident.UserID).Msg("persist reaction")
		return NewError(ErrCodePersistence, "reaction could not be stored")
	}

	r.broadcast(&Event{
		Kind: EventReactionUpdate,
		Room: r.id,
		Reaction: &Reaction{
			MessageID: messageID,
			UserID:    ident.UserID,
			Symbol:    symbol,
			At:        at,
		},
	}, nil)
	return nil
}

// VoiceJoin mints join credentials for the session's voice reading and
// tells the other members that the user went live.
func (rt *Router) VoiceJoin(ctx context.Context, conn *Conn) (*VoiceInfo, error) {
	if rt.voice == nil {
		return nil, NewError(ErrCodeVoiceDisabled, "voice readings are not enabled")
	}
	r, ident, err := rt.rooms.roomFor(conn)
	if err != nil {
		return nil, err
	}

	info, err := rt.voice.JoinInfo(ctx, r.id, ident.UserID, ident.DisplayName)
	if err != nil {
		rt.log.Error().Err(err).Str("room", r.id).Str("user_id", ident.UserID).Msg("mint voice token")
		return nil, NewError(ErrCodePersistence, "voice credentials unavailable")
	}

	r.broadcast(&Event{
		Kind: EventVoiceStarted,
		Room: r.id,
		User: ident.UserID,
		Name: ident.DisplayName,
	}, conn)
	return info, nil
}
