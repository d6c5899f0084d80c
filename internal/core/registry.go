package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/metrics"
	"github.com/tarotdesk/relay-server/internal/utils"
)

// Registry tracks every live connection and owns the authentication handshake.
// It never performs room authorization; that belongs to Rooms.
type Registry struct {
	mu        sync.Mutex
	conns     map[string]*Conn
	verifier  Verifier
	queueSize int
	log       *zerolog.Logger
}

// NewRegistry builds a connection registry backed by the given verifier.
func NewRegistry(verifier Verifier, queueSize int, logger *zerolog.Logger) *Registry {
	return &Registry{
		conns:     make(map[string]*Conn),
		verifier:  verifier,
		queueSize: queueSize,
		log:       logger,
	}
}

// Register allocates a new connection in the unauthenticated state.
func (r *Registry) Register() *Conn {
	conn := newConn(utils.NewID(), r.queueSize)

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	r.log.Debug().Str("conn_id", conn.ID).Msg("connection registered")
	return conn
}

// Authenticate verifies the credential and attaches the identity to the
// connection. A repeated call on an authenticated connection returns the
// cached identity so client retries stay harmless.
func (r *Registry) Authenticate(ctx context.Context, conn *Conn, credential string) (*Identity, error) {
	if ident := conn.Identity(); ident != nil {
		return ident, nil
	}
	if credential == "" {
		return nil, NewError(ErrCodeUnauthenticated, "credential is required")
	}

	ident, err := r.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}

	if !conn.setIdentity(ident) {
		// Lost the race against a concurrent retry; the stored identity wins.
		return conn.Identity(), nil
	}

	r.log.Info().
		Str("conn_id", conn.ID).
		Str("user_id", ident.UserID).
		Str("role", ident.Role).
		Msg("connection authenticated")
	return ident, nil
}

// Unregister removes the connection and closes its outbound queue.
// Room cleanup is orchestrated by the hub before this call.
func (r *Registry) Unregister(conn *Conn) {
	r.mu.Lock()
	_, known := r.conns[conn.ID]
	delete(r.conns, conn.ID)
	r.mu.Unlock()

	if !known {
		return
	}
	conn.close()
	metrics.ConnectionsActive.Dec()
	r.log.Debug().Str("conn_id", conn.ID).Msg("connection unregistered")
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
