package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/tarotdesk/relay-server/internal/core"
)

const tokenTTL = time.Hour

// Engine mints LiveKit join tokens for a session's voice reading.
// LiveKit creates media rooms on demand when the first participant
// connects, so no room provisioning call is needed here.
type Engine struct {
	apiKey    string
	apiSecret string
	wsURL     string
}

// New creates a LiveKit-backed voice engine.
func New(apiKey, apiSecret, wsURL string) *Engine {
	return &Engine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
	}
}

// JoinInfo mints join credentials scoped to the session's media room.
func (e *Engine) JoinInfo(_ context.Context, room, identity, name string) (*core.VoiceInfo, error) {
	mediaRoom := fmt.Sprintf("reading-%s", room)

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     mediaRoom,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(tokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &core.VoiceInfo{
		URL:   e.wsURL,
		Token: token,
		Room:  mediaRoom,
	}, nil
}

// Ensure Engine implements core.VoiceEngine.
var _ core.VoiceEngine = (*Engine)(nil)
