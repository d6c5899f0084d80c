package core

import (
	"context"
	"testing"
)

func TestAuthenticateAttachesIdentity(t *testing.T) {
	e := newEnv(t)
	e.verifier.add("u1", "Selene")

	conn := e.hub.Register()
	if conn.Identity() != nil {
		t.Fatal("fresh connection must be unauthenticated")
	}

	ident, err := e.hub.Authenticate(context.Background(), conn, "u1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ident.UserID != "u1" || ident.DisplayName != "Selene" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if got := conn.Identity(); got == nil || got.UserID != "u1" {
		t.Fatalf("identity not attached: %+v", got)
	}
}

func TestAuthenticateRetryReturnsCachedIdentity(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t, "u1", "Selene")

	before := e.verifier.calls
	ident, err := e.hub.Authenticate(context.Background(), conn, "other-credential")
	if err != nil {
		t.Fatalf("retry must not error: %v", err)
	}
	if ident.UserID != "u1" {
		t.Fatalf("retry must return the cached identity, got %+v", ident)
	}
	if e.verifier.calls != before {
		t.Fatal("verifier must be invoked at most once per connection")
	}
}

func TestAuthenticateRejections(t *testing.T) {
	e := newEnv(t)
	e.verifier.add("u1", "Selene")
	e.verifier.inactive["u2"] = true

	tests := []struct {
		name       string
		credential string
		wantCode   string
	}{
		{"missing credential", "", ErrCodeUnauthenticated},
		{"unknown credential", "nobody", ErrCodeInvalidCredential},
		{"inactive account", "u2", ErrCodeInactiveAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := e.hub.Register()
			_, err := e.hub.Authenticate(context.Background(), conn, tt.credential)
			if code := errCode(t, err); code != tt.wantCode {
				t.Fatalf("expected %s, got %s", tt.wantCode, code)
			}
			if conn.Identity() != nil {
				t.Fatal("rejected connection must stay unauthenticated")
			}
		})
	}
}

func TestUnregisterRemovesConnection(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t, "u1", "Selene")

	if got, _, _ := e.hub.Stats(); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}

	e.hub.Unregister(conn)
	if got, _, _ := e.hub.Stats(); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}

	// Delivery after teardown must be a no-op, not a panic.
	conn.Deliver(&Event{Kind: EventError})
	e.hub.Unregister(conn)
}

func TestDeliverDropsOldestOnOverflow(t *testing.T) {
	conn := newConn("c1", 2)

	for i := 0; i < 5; i++ {
		conn.Deliver(&Event{Kind: EventUserTyping, User: string(rune('a' + i))})
	}

	// The queue holds the two newest events.
	first := <-conn.Events()
	second := <-conn.Events()
	if first.User != "d" || second.User != "e" {
		t.Fatalf("expected newest events to survive, got %q then %q", first.User, second.User)
	}
	select {
	case ev := <-conn.Events():
		t.Fatalf("queue should be empty, got %+v", ev)
	default:
	}
}
