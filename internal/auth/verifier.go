package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/core"
	"github.com/tarotdesk/relay-server/internal/store"
)

// Verifier exchanges a bearer credential for a verified identity and
// profile snapshot. The credential is a JWT issued by the platform's
// identity service; the profile record lives in the shared store.
type Verifier struct {
	profiles  store.ProfileStore
	jwtConfig *JWTConfig
	log       *zerolog.Logger
}

// NewVerifier creates the identity verifier.
func NewVerifier(profiles store.ProfileStore, jwtConfig *JWTConfig, logger *zerolog.Logger) *Verifier {
	return &Verifier{
		profiles:  profiles,
		jwtConfig: jwtConfig,
		log:       logger,
	}
}

// Verify validates the credential and loads the profile snapshot.
func (v *Verifier) Verify(ctx context.Context, credential string) (*core.Identity, error) {
	if credential == "" {
		return nil, core.NewError(core.ErrCodeUnauthenticated, "credential is required")
	}

	claims, err := ValidateToken(v.jwtConfig, credential)
	if err != nil {
		v.log.Debug().Err(err).Msg("credential rejected")
		return nil, core.NewError(core.ErrCodeInvalidCredential, "invalid credential")
	}

	profile, err := v.profiles.GetProfile(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, core.NewError(core.ErrCodeInvalidCredential, "unknown account")
	}
	if err != nil {
		v.log.Error().Err(err).Str("user_id", claims.UserID).Msg("load profile")
		return nil, core.NewError(core.ErrCodePersistence, "profile lookup failed")
	}
	if !profile.Active {
		return nil, core.NewError(core.ErrCodeInactiveAccount, "account is inactive")
	}

	return &core.Identity{
		UserID:      profile.ID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Role:        string(profile.Role),
	}, nil
}
