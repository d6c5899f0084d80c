package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/core"
	"github.com/tarotdesk/relay-server/internal/store"
	"github.com/tarotdesk/relay-server/internal/store/sqlite"
)

func newTestVerifier(t *testing.T) (*Verifier, *JWTConfig) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	profiles := []*store.Profile{
		{ID: "u1", DisplayName: "Selene", Role: store.RoleAdvisor, Active: true},
		{ID: "u2", DisplayName: "Cass", Role: store.RoleClient, Active: false},
	}
	for _, p := range profiles {
		if err := st.CreateProfile(ctx, p); err != nil {
			t.Fatalf("seed profile %s: %v", p.ID, err)
		}
	}

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	logger := zerolog.Nop()
	return NewVerifier(st, jwtConfig, &logger), jwtConfig
}

func TestVerifyValidCredential(t *testing.T) {
	v, cfg := newTestVerifier(t)

	token, err := GenerateToken(cfg, "u1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	ident, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.UserID != "u1" || ident.DisplayName != "Selene" || ident.Role != "advisor" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	v, _ := newTestVerifier(t)

	_, err := v.Verify(context.Background(), "not-a-jwt")
	assertCode(t, err, core.ErrCodeInvalidCredential)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v, cfg := newTestVerifier(t)

	forged := &JWTConfig{Secret: []byte("other"), Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: time.Hour}
	token, err := GenerateToken(forged, "u1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = v.Verify(context.Background(), token)
	assertCode(t, err, core.ErrCodeInvalidCredential)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, cfg := newTestVerifier(t)

	expired := &JWTConfig{Secret: cfg.Secret, Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: -time.Hour}
	token, err := GenerateToken(expired, "u1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = v.Verify(context.Background(), token)
	assertCode(t, err, core.ErrCodeInvalidCredential)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	v, cfg := newTestVerifier(t)

	other := &JWTConfig{Secret: cfg.Secret, Issuer: "someone-else", Audience: cfg.Audience, TTL: time.Hour}
	token, err := GenerateToken(other, "u1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = v.Verify(context.Background(), token)
	assertCode(t, err, core.ErrCodeInvalidCredential)
}

func TestVerifyRejectsUnknownAccount(t *testing.T) {
	v, cfg := newTestVerifier(t)

	token, err := GenerateToken(cfg, "ghost")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = v.Verify(context.Background(), token)
	assertCode(t, err, core.ErrCodeInvalidCredential)
}

func TestVerifyRejectsInactiveAccount(t *testing.T) {
	v, cfg := newTestVerifier(t)

	token, err := GenerateToken(cfg, "u2")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = v.Verify(context.Background(), token)
	assertCode(t, err, core.ErrCodeInactiveAccount)
}

func TestVerifyRejectsEmptyCredential(t *testing.T) {
	v, _ := newTestVerifier(t)

	_, err := v.Verify(context.Background(), "")
	assertCode(t, err, core.ErrCodeUnauthenticated)
}

func assertCode(t *testing.T, err error, want string) {
	t.Helper()

	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("expected *core.Error, got %T: %v", err, err)
	}
	if coreErr.Code != want {
		t.Fatalf("expected code %s, got %s", want, coreErr.Code)
	}
}
