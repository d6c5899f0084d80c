package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tarotdesk/relay-server/internal/store"
)

func twoInRoom(t *testing.T) (*env, *Conn, *Conn) {
	t.Helper()

	e := newEnv(t)
	e.sessions.add("r1", store.SessionActive, "u1", "u2")
	alice := e.connect(t, "u1", "Alice")
	bob := e.connect(t, "u2", "Bob")
	e.join(t, alice, "r1")
	e.join(t, bob, "r1")
	return e, alice, bob
}

func TestSendMessageFanOutExcludesSender(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	ack, err := e.hub.SendMessage(context.Background(), alice, "text", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ack.MessageID == "" || ack.SentAt.IsZero() {
		t.Fatalf("incomplete ack: %+v", ack)
	}

	ev := mustEvent(t, bob.Events(), EventNewMessage)
	if ev.Message.SenderID != "u1" || ev.Message.SenderName != "Alice" || ev.Message.Content != "hello" {
		t.Fatalf("unexpected message event: %+v", ev.Message)
	}
	if ev.Message.ID != ack.MessageID {
		t.Fatalf("broadcast ID %q != ack ID %q", ev.Message.ID, ack.MessageID)
	}

	// The sender gets the ack only, never its own message back.
	noEvent(t, alice.Events(), EventNewMessage)
}

func TestSendMessagePreservesOrder(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	for i := 1; i <= 3; i++ {
		if _, err := e.hub.SendMessage(context.Background(), alice, "text", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	for i := 1; i <= 3; i++ {
		ev := mustEvent(t, bob.Events(), EventNewMessage)
		if want := fmt.Sprintf("msg-%d", i); ev.Message.Content != want {
			t.Fatalf("expected %q, got %q", want, ev.Message.Content)
		}
	}
}

func TestSendMessageValidation(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	tests := []struct {
		name    string
		kind    string
		content string
	}{
		{"empty text", "text", ""},
		{"whitespace text", "text", "   "},
		{"unknown kind", "sigil", "x"},
		{"empty card draw", "card_draw", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.hub.SendMessage(context.Background(), alice, tt.kind, tt.content)
			if code := errCode(t, err); code != ErrCodeMalformedPayload {
				t.Fatalf("expected malformed_payload, got %s", code)
			}
		})
	}
	noEvent(t, bob.Events(), EventNewMessage)
}

func TestSendMessageRequiresMembership(t *testing.T) {
	e := newEnv(t)
	alice := e.connect(t, "u1", "Alice")

	_, err := e.hub.SendMessage(context.Background(), alice, "text", "hello")
	if code := errCode(t, err); code != ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room, got %s", code)
	}
}

func TestSendMessagePersistenceFailure(t *testing.T) {
	e, alice, bob := twoInRoom(t)
	e.messages.fail = true

	_, err := e.hub.SendMessage(context.Background(), alice, "text", "hello")
	if code := errCode(t, err); code != ErrCodePersistence {
		t.Fatalf("expected persistence_failed, got %s", code)
	}
	// No broadcast when the store rejected the message.
	noEvent(t, bob.Events(), EventNewMessage)
}

func TestCardDrawMessageKind(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	if _, err := e.hub.SendMessage(context.Background(), alice, "card_draw", "major:the-moon"); err != nil {
		t.Fatalf("send: %v", err)
	}

	ev := mustEvent(t, bob.Events(), EventNewMessage)
	if ev.Message.Kind != "card_draw" || ev.Message.Content != "major:the-moon" {
		t.Fatalf("unexpected message: %+v", ev.Message)
	}
}

func TestReactionBroadcastIncludesReactor(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	if err := e.hub.React(context.Background(), alice, "m1", "🌙"); err != nil {
		t.Fatalf("react: %v", err)
	}

	for _, conn := range []*Conn{alice, bob} {
		ev := mustEvent(t, conn.Events(), EventReactionUpdate)
		if ev.Reaction.MessageID != "m1" || ev.Reaction.UserID != "u1" || ev.Reaction.Symbol != "🌙" {
			t.Fatalf("unexpected reaction event: %+v", ev.Reaction)
		}
	}
}

func TestReactionReplacesPriorOne(t *testing.T) {
	e, alice, _ := twoInRoom(t)

	if err := e.hub.React(context.Background(), alice, "m1", "🌙"); err != nil {
		t.Fatalf("react: %v", err)
	}
	if err := e.hub.React(context.Background(), alice, "m1", "⭐"); err != nil {
		t.Fatalf("re-react: %v", err)
	}

	if got := e.reactions.count(); got != 1 {
		t.Fatalf("expected a single reaction row, got %d", got)
	}
	if got := e.reactions.symbol("m1", "u1"); got != "⭐" {
		t.Fatalf("expected the newer symbol to win, got %q", got)
	}
}

func TestReactionPersistenceFailure(t *testing.T) {
	e, alice, bob := twoInRoom(t)
	e.reactions.fail = true

	err := e.hub.React(context.Background(), alice, "m1", "🌙")
	if code := errCode(t, err); code != ErrCodePersistence {
		t.Fatalf("expected persistence_failed, got %s", code)
	}
	noEvent(t, bob.Events(), EventReactionUpdate)
	noEvent(t, alice.Events(), EventReactionUpdate)
}

func TestTypingLastWriteWins(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	if err := e.hub.Typing(alice, true); err != nil {
		t.Fatalf("typing start: %v", err)
	}
	ev := mustEvent(t, bob.Events(), EventUserTyping)
	if !ev.Typing || ev.User != "u1" {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	// The typer does not hear itself.
	noEvent(t, alice.Events(), EventUserTyping)

	if err := e.hub.Typing(alice, false); err != nil {
		t.Fatalf("typing stop: %v", err)
	}
	ev = mustEvent(t, bob.Events(), EventUserTyping)
	if ev.Typing {
		t.Fatalf("expected stop flag, got %+v", ev)
	}
}

func TestTypingExpiresWithoutStop(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	if err := e.hub.Typing(alice, true); err != nil {
		t.Fatalf("typing start: %v", err)
	}
	mustEvent(t, bob.Events(), EventUserTyping)

	// Sweep past the TTL; the stale start must not stick.
	e.hub.rooms.ExpireTyping(time.Now().Add(time.Minute))

	ev := mustEvent(t, bob.Events(), EventUserTyping)
	if ev.Typing {
		t.Fatalf("expected expiry stop, got %+v", ev)
	}
}

func TestVoiceJoin(t *testing.T) {
	e, alice, bob := twoInRoom(t)

	info, err := e.hub.VoiceJoin(context.Background(), alice)
	if err != nil {
		t.Fatalf("voice join: %v", err)
	}
	if info.Token != "tok-u1" || info.Room != "reading-r1" {
		t.Fatalf("unexpected join info: %+v", info)
	}

	ev := mustEvent(t, bob.Events(), EventVoiceStarted)
	if ev.User != "u1" || ev.Name != "Alice" {
		t.Fatalf("unexpected voice event: %+v", ev)
	}
	noEvent(t, alice.Events(), EventVoiceStarted)
}

func TestVoiceJoinDisabled(t *testing.T) {
	e := newEnv(t)
	e.sessions.add("r1", store.SessionActive, "u1")
	e.hub.router.voice = nil

	alice := e.connect(t, "u1", "Alice")
	e.join(t, alice, "r1")

	_, err := e.hub.VoiceJoin(context.Background(), alice)
	if code := errCode(t, err); code != ErrCodeVoiceDisabled {
		t.Fatalf("expected voice_disabled, got %s", code)
	}
}
