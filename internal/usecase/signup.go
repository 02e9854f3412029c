package usecase

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/line"
	"github.com/kerokerotur/banars-app/internal/metrics"
	"github.com/kerokerotur/banars-app/internal/model"
)

// Error codes owned by signup.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeProfileMismatch       = "line_profile_mismatch"
	CodeDisplayNameUnresolved = "display_name_unresolved"
	CodeInternalError         = "internal_error"
)

const maxDisplayNameLength = 120

// Signup provisions a local account from a verified LINE identity gated by a
// single-use invite. It is pure orchestration over its ports; re-running for
// an already provisioned LINE user id is a no-op that returns a nil session
// token.
type Signup struct {
	Verifier    TokenVerifier
	Invites     InviteValidator
	Users       UserRepository
	Profiles    ProfileRepository
	PushTargets PushTargetRepository
	Auth        AuthProvider

	now func() time.Time
}

func NewSignup(verifier TokenVerifier, invites InviteValidator, users UserRepository, profiles ProfileRepository, pushTargets PushTargetRepository, auth AuthProvider) *Signup {
	return &Signup{
		Verifier:    verifier,
		Invites:     invites,
		Users:       users,
		Profiles:    profiles,
		PushTargets: pushTargets,
		Auth:        auth,
		now:         time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (uc *Signup) WithClock(now func() time.Time) *Signup {
	uc.now = now
	return uc
}

type ClaimedProfile struct {
	LineUserID  string
	DisplayName string
	AvatarURL   *string
	PlayerID    *string
}

type SignupInput struct {
	InviteToken string
	IDToken     string
	AccessToken string
	Profile     ClaimedProfile
}

type SignupOutput struct {
	UserID string
	// SessionTransferToken is nil when the LINE user was already provisioned;
	// the caller should use the normal login flow instead.
	SessionTransferToken *string
}

func (uc *Signup) Execute(ctx context.Context, in SignupInput) (SignupOutput, error) {
	if strings.TrimSpace(in.IDToken) == "" || strings.TrimSpace(in.AccessToken) == "" {
		return SignupOutput{}, apperr.New(CodeInvalidRequest, "LINE tokens are required", 400)
	}
	if strings.TrimSpace(in.Profile.LineUserID) == "" {
		return SignupOutput{}, apperr.New(CodeInvalidRequest, "lineProfile.lineUserId is required", 400)
	}

	claims, err := uc.Verifier.Verify(ctx, in.IDToken)
	if err != nil {
		return SignupOutput{}, err
	}

	// A valid token for one identity must not attach another identity's
	// claimed profile.
	if claims.Sub != in.Profile.LineUserID {
		return SignupOutput{}, apperr.New(CodeProfileMismatch, "LINE profile does not match the id token subject", 400)
	}

	displayName, err := resolveDisplayName(in.Profile.DisplayName, claims.Name)
	if err != nil {
		return SignupOutput{}, err
	}
	avatarURL := sanitizeAvatarURL(in.Profile.AvatarURL)

	if _, err := uc.Invites.Validate(ctx, in.InviteToken); err != nil {
		return SignupOutput{}, err
	}

	existing, err := uc.Users.FindByLineID(ctx, claims.Sub)
	switch {
	case err == nil:
		uc.registerPlayer(ctx, existing.ID, in.Profile.PlayerID)
		return SignupOutput{UserID: existing.ID}, nil
	case !errors.Is(err, model.ErrNotFound):
		return SignupOutput{}, apperr.Wrap(CodeInternalError, "user lookup failed", 500, err)
	}

	email := line.DeriveEmail(claims.Sub, claims.Email)
	userID, err := uc.Auth.CreateAccount(ctx, email, AccountMetadata{
		LineUserID:  claims.Sub,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
	})
	if err != nil {
		return SignupOutput{}, uc.internalError("auth account creation failed", err)
	}

	now := uc.now().UTC()
	err = uc.Users.Upsert(ctx, model.User{
		ID:         userID,
		LineUserID: claims.Sub,
		Status:     model.UserStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			// A concurrent signup won the race between lookup and insert.
			winner, findErr := uc.Users.FindByLineID(ctx, claims.Sub)
			if findErr != nil {
				return SignupOutput{}, apperr.Wrap(CodeInternalError, "user lookup after conflict failed", 500, findErr)
			}
			uc.registerPlayer(ctx, winner.ID, in.Profile.PlayerID)
			return SignupOutput{UserID: winner.ID}, nil
		}
		return SignupOutput{}, apperr.Wrap(CodeInternalError, "user persistence failed", 500, err)
	}

	err = uc.Profiles.Upsert(ctx, model.UserProfile{
		UserID:      userID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		SyncedAt:    now,
	})
	if err != nil {
		return SignupOutput{}, apperr.Wrap(CodeInternalError, "profile persistence failed", 500, err)
	}

	uc.registerPlayer(ctx, userID, in.Profile.PlayerID)

	sessionToken, err := uc.Auth.GenerateSessionToken(ctx, email)
	if err != nil {
		return SignupOutput{}, uc.internalError("session token issuance failed", err)
	}

	metrics.Signups.Inc()
	return SignupOutput{UserID: userID, SessionTransferToken: &sessionToken}, nil
}

// registerPlayer is best-effort: notification delivery is not signup-critical.
func (uc *Signup) registerPlayer(ctx context.Context, userID string, playerID *string) {
	if playerID == nil || strings.TrimSpace(*playerID) == "" {
		return
	}
	if err := uc.PushTargets.Upsert(ctx, userID, strings.TrimSpace(*playerID)); err != nil {
		log.Printf("push target registration failed for user %s: %v", userID, err)
	}
}

func (uc *Signup) internalError(message string, err error) error {
	if appErr, ok := apperr.From(err); ok {
		return appErr
	}
	return apperr.Wrap(CodeInternalError, message, 500, err)
}

func resolveDisplayName(claimed, fromToken string) (string, error) {
	name := strings.TrimSpace(claimed)
	if name == "" {
		name = strings.TrimSpace(fromToken)
	}
	if name == "" {
		return "", apperr.New(CodeDisplayNameUnresolved, "could not determine display name", 400)
	}
	if runes := []rune(name); len(runes) > maxDisplayNameLength {
		name = string(runes[:maxDisplayNameLength])
	}
	return name, nil
}

// sanitizeAvatarURL keeps only absolute http/https URLs; anything else is
// stored as null rather than failing signup.
func sanitizeAvatarURL(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() {
		return nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil
	}
	normalized := parsed.String()
	return &normalized
}
