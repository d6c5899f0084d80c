package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/auth"
	"github.com/tarotdesk/relay-server/internal/config"
	"github.com/tarotdesk/relay-server/internal/core"
	"github.com/tarotdesk/relay-server/internal/proto"
	"github.com/tarotdesk/relay-server/internal/store"
	"github.com/tarotdesk/relay-server/internal/store/sqlite"
)

// testEnv bundles everything an end-to-end transport test needs.
type testEnv struct {
	ts  *httptest.Server
	st  *sqlite.SQLiteStore
	jwt *auth.JWTConfig
}

// testConfig returns server configuration suitable for tests.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	return cfg
}

// startTestServer boots the full stack on an in-memory store: sqlite,
// verifier, hub, gin router. Profiles u1 (advisor) and u2 (client) are
// participants of session s1; u3 is an active profile outside it.
func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	profiles := []*store.Profile{
		{ID: "u1", DisplayName: "Selene", Role: store.RoleAdvisor, Active: true},
		{ID: "u2", DisplayName: "Cass", Role: store.RoleClient, Active: true},
		{ID: "u3", DisplayName: "Nova", Role: store.RoleClient, Active: true},
	}
	for _, p := range profiles {
		if err := st.CreateProfile(ctx, p); err != nil {
			t.Fatalf("seed profile %s: %v", p.ID, err)
		}
	}
	err = st.CreateSession(ctx, &store.Session{
		ID:           "s1",
		Status:       store.SessionActive,
		Participants: []string{"u1", "u2"},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("testsecret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}

	disabledLogger := zerolog.New(nil)
	verifier := auth.NewVerifier(st, jwtConfig, &disabledLogger)
	hub := core.NewHub(core.HubDeps{
		Verifier:  verifier,
		Sessions:  st,
		Messages:  st,
		Reactions: st,
		Profiles:  st,
	}, core.HubConfig{SendQueue: cfg.SendQueue, TypingTTL: cfg.TypingTTL}, &disabledLogger)

	server := NewServer(hub, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, st: st, jwt: jwtConfig}
}

// wsURL converts the test server's base URL into the ws endpoint URL.
func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// token mints a platform credential for the given user.
func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()

	token, err := auth.GenerateToken(e.jwt, userID)
	if err != nil {
		t.Fatalf("generate token for %s: %v", userID, err)
	}
	return token
}

// dial opens a WebSocket connection to the test server.
func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

// rawOutbound mirrors proto.Outbound with the payload left undecoded.
type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// sendFrame writes one inbound envelope.
func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("write %s frame: %v", msgType, err)
	}
}

// waitForEvent reads frames until one with the wanted event name arrives,
// discarding others.
func waitForEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) rawOutbound {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	for {
		var out rawOutbound
		if err := wsjson.Read(readCtx, conn, &out); err != nil {
			t.Fatalf("waiting for %s event: %v", event, err)
		}
		if out.Event == event {
			return out
		}
	}
}

// decodeData unmarshals an event payload into dst.
func decodeData(t *testing.T, out rawOutbound, dst any) {
	t.Helper()

	if err := json.Unmarshal(out.Data, dst); err != nil {
		t.Fatalf("decode %s payload: %v", out.Event, err)
	}
}

// authenticate completes the credential handshake and returns the
// confirmed identity.
func authenticate(t *testing.T, ctx context.Context, conn *websocket.Conn, token string) proto.AuthenticatedData {
	t.Helper()

	sendFrame(t, ctx, conn, proto.InboundTypeAuth, proto.AuthData{Token: token})
	out := waitForEvent(t, ctx, conn, proto.EventAuthenticated)

	var data proto.AuthenticatedData
	decodeData(t, out, &data)
	return data
}

// joinRoom joins a session room and waits for the confirmation.
func joinRoom(t *testing.T, ctx context.Context, conn *websocket.Conn, room string) {
	t.Helper()

	sendFrame(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: room})
	waitForEvent(t, ctx, conn, proto.EventChatJoined)
}

// expectSilence asserts that no frame arrives within the window.
func expectSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	readCtx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()

	var out rawOutbound
	if err := wsjson.Read(readCtx, conn, &out); err == nil {
		t.Fatalf("expected no frame, got %s/%s", out.Type, out.Event)
	}
}
