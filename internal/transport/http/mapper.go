package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tarotdesk/relay-server/internal/core"
	"github.com/tarotdesk/relay-server/internal/proto"
)

// dispatch decodes one inbound frame and executes it against the hub.
// Every rejection, an undecodable data payload included, is delivered to
// the calling connection as exactly one error event; the connection stays
// up. Only an unreadable frame (handled in readLoop) ends the session.
func (h *WSHandler) dispatch(ctx context.Context, conn *core.Conn, inbound proto.Inbound, limiter *rateLimiter) {
	// The credential handshake is the only operation an unauthenticated
	// connection may perform.
	if inbound.Type != proto.InboundTypeAuth && conn.Identity() == nil {
		deliverError(conn, core.NewError(core.ErrCodeUnauthenticated, "authenticate first"))
		return
	}

	switch inbound.Type {
	case proto.InboundTypeAuth:
		var data proto.AuthData
		if !h.decode(conn, inbound, &data) {
			return
		}
		ident, err := h.hub.Authenticate(ctx, conn, data.Token)
		if err != nil {
			deliverError(conn, err)
			return
		}
		conn.Deliver(&core.Event{Kind: core.EventAuthenticated, Identity: ident})

	case proto.InboundTypeJoin:
		var data proto.JoinData
		if !h.decode(conn, inbound, &data) {
			return
		}
		if data.Room == "" {
			deliverError(conn, core.NewError(core.ErrCodeBadRequest, "room is required"))
			return
		}
		if err := h.hub.Join(ctx, conn, data.Room); err != nil {
			deliverError(conn, err)
			return
		}
		conn.Deliver(&core.Event{Kind: core.EventChatJoined, Room: data.Room})

	case proto.InboundTypeLeave:
		h.hub.Leave(conn)

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if !h.decode(conn, inbound, &data) {
			return
		}
		if err := h.hub.Typing(conn, data.IsTyping); err != nil {
			deliverError(conn, err)
		}

	case proto.InboundTypeMessage:
		if !limiter.allow() {
			deliverError(conn, core.NewError(core.ErrCodeRateLimited, "too many messages"))
			return
		}
		var data proto.MessageData
		if !h.decode(conn, inbound, &data) {
			return
		}
		ack, err := h.hub.SendMessage(ctx, conn, data.Kind, data.Content)
		if err != nil {
			deliverError(conn, err)
			return
		}
		conn.Deliver(&core.Event{Kind: core.EventMessageSent, Ack: ack})

	case proto.InboundTypeReaction:
		var data proto.ReactionData
		if !h.decode(conn, inbound, &data) {
			return
		}
		if err := h.hub.React(ctx, conn, data.MessageID, data.Symbol); err != nil {
			deliverError(conn, err)
		}

	case proto.InboundTypeVoiceJoin:
		info, err := h.hub.VoiceJoin(ctx, conn)
		if err != nil {
			deliverError(conn, err)
			return
		}
		conn.Deliver(&core.Event{Kind: core.EventVoiceReady, Voice: info})

	default:
		deliverError(conn, core.NewError(core.ErrCodeBadRequest, "unknown message type"))
	}
}

// decode unmarshals a frame's data payload, reporting a malformed_payload
// error to the connection on failure.
func (h *WSHandler) decode(conn *core.Conn, inbound proto.Inbound, dst any) bool {
	if err := json.Unmarshal(inbound.Data, dst); err != nil {
		h.log.Debug().Err(err).Str("type", inbound.Type).Str("conn_id", conn.ID).Msg("undecodable payload")
		deliverError(conn, core.NewError(core.ErrCodeMalformedPayload, "malformed "+inbound.Type+" payload"))
		return false
	}
	return true
}

func deliverError(conn *core.Conn, err error) {
	var domainErr *core.Error
	if !errors.As(err, &domainErr) {
		domainErr = core.NewError(core.ErrCodeBadRequest, err.Error())
	}
	conn.Deliver(&core.Event{Kind: core.EventError, Error: domainErr})
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventAuthenticated:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventAuthenticated,
			Data: proto.AuthenticatedData{
				UserID: event.Identity.UserID,
				Name:   event.Identity.DisplayName,
				Avatar: event.Identity.AvatarURL,
				Role:   event.Identity.Role,
			},
		}
	case core.EventChatJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChatJoined,
			Data:  proto.ChatJoinedData{Room: event.Room},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoined,
			Data:  proto.UserEventData{Room: event.Room, User: event.User, Name: event.Name},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserLeft,
			Data:  proto.UserEventData{Room: event.Room, User: event.User},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data:  proto.TypingEventData{Room: event.Room, User: event.User, IsTyping: event.Typing},
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data: proto.MessageEventData{
				ID:      event.Message.ID,
				Room:    event.Message.Room,
				Sender:  event.Message.SenderID,
				Name:    event.Message.SenderName,
				Kind:    event.Message.Kind,
				Content: event.Message.Content,
				TS:      event.Message.SentAt.Unix(),
			},
		}
	case core.EventMessageSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageSent,
			Data: proto.MessageSentData{
				MessageID: event.Ack.MessageID,
				TS:        event.Ack.SentAt.Unix(),
			},
		}
	case core.EventReactionUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReactionUpdate,
			Data: proto.ReactionEventData{
				MessageID: event.Reaction.MessageID,
				User:      event.Reaction.UserID,
				Symbol:    event.Reaction.Symbol,
				TS:        event.Reaction.At.Unix(),
			},
		}
	case core.EventSessionStatus:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventSessionStatus,
			Data:  proto.SessionStatusData{Room: event.Room, Status: event.Status},
		}
	case core.EventVoiceReady:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventVoiceReady,
			Data:  proto.VoiceReadyData{URL: event.Voice.URL, Token: event.Voice.Token, Room: event.Voice.Room},
		}
	case core.EventVoiceStarted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventVoiceStarted,
			Data:  proto.UserEventData{Room: event.Room, User: event.User, Name: event.Name},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Event: proto.EventError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		name := proto.EventError
		if core.IsAuthCode(event.Error.Code) {
			name = proto.EventAuthError
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: name,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
