package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/store"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent asserts that no event of the given kind is pending.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakeVerifier resolves a credential equal to the user ID.
type fakeVerifier struct {
	mu       sync.Mutex
	idents   map[string]*Identity
	inactive map[string]bool
	calls    int
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		idents:   make(map[string]*Identity),
		inactive: make(map[string]bool),
	}
}

func (v *fakeVerifier) add(userID, name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.idents[userID] = &Identity{UserID: userID, DisplayName: name, Role: "client"}
}

func (v *fakeVerifier) Verify(_ context.Context, credential string) (*Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.inactive[credential] {
		return nil, NewError(ErrCodeInactiveAccount, "account is inactive")
	}
	ident, ok := v.idents[credential]
	if !ok {
		return nil, NewError(ErrCodeInvalidCredential, "invalid credential")
	}
	return ident, nil
}

// fakeSessions is an in-memory booking record.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*store.Session
	err      error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*store.Session)}
}

func (f *fakeSessions) add(id string, status store.SessionStatus, participants ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = &store.Session{ID: id, Status: status, Participants: participants}
}

func (f *fakeSessions) setStatus(id string, status store.SessionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.Status = status
	}
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	cp.Participants = append([]string(nil), s.Participants...)
	return &cp, nil
}

// fakeMessages assigns sequential IDs and can be told to fail.
type fakeMessages struct {
	mu    sync.Mutex
	saved []*store.Message
	fail  bool
}

func (f *fakeMessages) SaveMessage(_ context.Context, msg *store.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("store unavailable")
	}
	id := fmt.Sprintf("m%d", len(f.saved)+1)
	cp := *msg
	cp.ID = id
	f.saved = append(f.saved, &cp)
	return id, nil
}

// fakeReactions keeps one row per (message, user), like the real store.
type fakeReactions struct {
	mu     sync.Mutex
	byUser map[string]string // messageID+"/"+userID -> symbol
	fail   bool
}

func newFakeReactions() *fakeReactions {
	return &fakeReactions{byUser: make(map[string]string)}
}

func (f *fakeReactions) SaveReaction(_ context.Context, r *store.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("store unavailable")
	}
	f.byUser[r.MessageID+"/"+r.UserID] = r.Symbol
	return nil
}

func (f *fakeReactions) symbol(messageID, userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byUser[messageID+"/"+userID]
}

func (f *fakeReactions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byUser)
}

// fakeProfiles records last-seen touches and signals each one.
type fakeProfiles struct {
	mu      sync.Mutex
	touched map[string]time.Time
	fail    bool
	signal  chan string
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		touched: make(map[string]time.Time),
		signal:  make(chan string, 8),
	}
}

func (f *fakeProfiles) TouchLastSeen(_ context.Context, userID string, ts time.Time) error {
	f.mu.Lock()
	fail := f.fail
	if !fail {
		f.touched[userID] = ts
	}
	f.mu.Unlock()

	f.signal <- userID
	if fail {
		return fmt.Errorf("store unavailable")
	}
	return nil
}

// fakeVoice mints predictable join info.
type fakeVoice struct{}

func (fakeVoice) JoinInfo(_ context.Context, room, identity, _ string) (*VoiceInfo, error) {
	return &VoiceInfo{URL: "ws://voice.test", Token: "tok-" + identity, Room: "reading-" + room}, nil
}

// env bundles the relay core with its fake collaborators.
type env struct {
	verifier  *fakeVerifier
	sessions  *fakeSessions
	messages  *fakeMessages
	reactions *fakeReactions
	profiles  *fakeProfiles
	hub       *Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		verifier:  newFakeVerifier(),
		sessions:  newFakeSessions(),
		messages:  &fakeMessages{},
		reactions: newFakeReactions(),
		profiles:  newFakeProfiles(),
	}
	e.hub = NewHub(HubDeps{
		Verifier:  e.verifier,
		Sessions:  e.sessions,
		Messages:  e.messages,
		Reactions: e.reactions,
		Profiles:  e.profiles,
		Voice:     fakeVoice{},
	}, HubConfig{SendQueue: 32, TypingTTL: 5 * time.Second}, testLogger())
	return e
}

// connect registers a connection and authenticates it as userID.
func (e *env) connect(t *testing.T, userID, name string) *Conn {
	t.Helper()

	e.verifier.add(userID, name)
	conn := e.hub.Register()
	if _, err := e.hub.Authenticate(context.Background(), conn, userID); err != nil {
		t.Fatalf("authenticate %s: %v", userID, err)
	}
	return conn
}

// join connects and joins in one step, draining the chat_joined ack path.
func (e *env) join(t *testing.T, conn *Conn, room string) {
	t.Helper()

	if err := e.hub.Join(context.Background(), conn, room); err != nil {
		t.Fatalf("join %s: %v", room, err)
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	coreErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *core.Error, got %T: %v", err, err)
	}
	return coreErr.Code
}
