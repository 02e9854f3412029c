package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/line"
	"github.com/kerokerotur/banars-app/internal/model"
)

// Error codes owned by login.
const (
	CodeTokenInvalid  = "token_invalid"
	CodeUserNotFound  = "user_not_found"
	CodeUserBlocked   = "user_blocked"
	CodeLoginInternal = "internal_error"
)

// Login re-authenticates an already provisioned LINE identity. It never
// creates accounts; an unknown subject is told to sign up with an invite.
type Login struct {
	Verifier    TokenVerifier
	Users       UserRepository
	PushTargets PushTargetRepository
	Auth        AuthProvider

	now func() time.Time
}

func NewLogin(verifier TokenVerifier, users UserRepository, pushTargets PushTargetRepository, auth AuthProvider) *Login {
	return &Login{Verifier: verifier, Users: users, PushTargets: pushTargets, Auth: auth, now: time.Now}
}

func (uc *Login) WithClock(now func() time.Time) *Login {
	uc.now = now
	return uc
}

type LoginInput struct {
	IDToken  string
	PlayerID *string
}

type LoginOutput struct {
	UserID               string
	SessionTransferToken string
}

func (uc *Login) Execute(ctx context.Context, in LoginInput) (LoginOutput, error) {
	claims, err := uc.Verifier.Verify(ctx, in.IDToken)
	if err != nil {
		return LoginOutput{}, remapVerifierError(err)
	}

	user, err := uc.Users.FindByLineID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return LoginOutput{}, apperr.New(CodeUserNotFound, "not registered; use an invitation to sign up", 404)
		}
		return LoginOutput{}, apperr.Wrap(CodeLoginInternal, "user lookup failed", 500, err)
	}
	if user.Status == model.UserStatusBlocked {
		return LoginOutput{}, apperr.New(CodeUserBlocked, "this account is disabled", 403)
	}

	// Kept in step with signup's derivation: the session-transfer mechanism
	// is keyed by this email.
	email := line.DeriveEmail(claims.Sub, claims.Email)

	sessionToken, err := uc.Auth.GenerateSessionToken(ctx, email)
	if err != nil {
		if appErr, ok := apperr.From(err); ok {
			return LoginOutput{}, &apperr.Error{Code: CodeLoginInternal, Message: appErr.Message, Status: appErr.Status, Detail: appErr.Detail}
		}
		return LoginOutput{}, apperr.Wrap(CodeLoginInternal, "session token issuance failed", 500, err)
	}

	if err := uc.Users.TouchLastLogin(ctx, user.ID, uc.now().UTC()); err != nil {
		log.Printf("last-login update failed for user %s: %v", user.ID, err)
	}
	if in.PlayerID != nil && strings.TrimSpace(*in.PlayerID) != "" {
		if err := uc.PushTargets.Upsert(ctx, user.ID, strings.TrimSpace(*in.PlayerID)); err != nil {
			log.Printf("push target registration failed for user %s: %v", user.ID, err)
		}
	}

	return LoginOutput{UserID: user.ID, SessionTransferToken: sessionToken}, nil
}

// remapVerifierError translates the verifier's taxonomy into login's own
// without leaking signup-specific codes.
func remapVerifierError(err error) error {
	if appErr, ok := apperr.From(err); ok {
		return &apperr.Error{Code: CodeTokenInvalid, Message: appErr.Message, Status: appErr.Status, Detail: appErr.Detail}
	}
	return apperr.Wrap(CodeTokenInvalid, "LINE id token verification failed", 401, err)
}
