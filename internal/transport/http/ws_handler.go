package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/core"
	"github.com/tarotdesk/relay-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Conn.
type WSHandler struct {
	hub       *core.Hub
	authGrace time.Duration
	msgLimit  int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authGrace time.Duration, msgLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, authGrace: authGrace, msgLimit: msgLimit, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer wsConn.Close(websocket.StatusInternalError, "internal error")

	conn := h.hub.Register()
	defer h.hub.Unregister(conn)

	// Reclaim transports that never authenticate.
	if h.authGrace > 0 {
		graceTimer := time.AfterFunc(h.authGrace, func() {
			if conn.Identity() == nil {
				h.log.Info().Str("conn_id", conn.ID).Msg("closing unauthenticated connection")
				wsConn.Close(websocket.StatusPolicyViolation, "authentication timeout")
			}
		})
		defer graceTimer.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, wsConn, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, wsConn, conn)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	wsConn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, wsConn *websocket.Conn, conn *core.Conn) error {
	limiter := newRateLimiter(h.msgLimit)
	limiter.startReset(ctx.Done())

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, wsConn, &inbound); err != nil {
			return err
		}
		h.dispatch(ctx, conn, inbound, limiter)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, wsConn *websocket.Conn, conn *core.Conn) error {
	for {
		select {
		case event, ok := <-conn.Events():
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, wsConn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", conn.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
