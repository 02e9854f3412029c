package authprovider

import (
	"context"
	"errors"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/usecase"
)

const codeInternalError = "internal_error"

// Firebase adapts Firebase Auth to the AuthProvider port. Accounts are keyed
// by the canonical email derived from the LINE subject; the session-transfer
// credential is a Firebase custom token the client exchanges for a session.
type Firebase struct {
	auth *fbauth.Client
}

// New builds the adapter. credentialsFile may be empty, in which case the
// SDK falls back to application-default credentials.
func New(ctx context.Context, credentialsFile string) (*Firebase, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &Firebase{auth: client}, nil
}

func (f *Firebase) CreateAccount(ctx context.Context, email string, meta usecase.AccountMetadata) (string, error) {
	params := (&fbauth.UserToCreate{}).
		Email(email).
		EmailVerified(true).
		DisplayName(meta.DisplayName)
	if meta.AvatarURL != nil {
		params = params.PhotoURL(*meta.AvatarURL)
	}

	record, err := f.auth.CreateUser(ctx, params)
	if err != nil {
		return "", apperr.Wrap(codeInternalError, "auth account creation failed", 502, err)
	}
	return record.UID, nil
}

func (f *Firebase) GenerateSessionToken(ctx context.Context, email string) (string, error) {
	user, err := f.auth.GetUserByEmail(ctx, email)
	if err != nil {
		return "", apperr.Wrap(codeInternalError, "auth account lookup failed", 502, err)
	}
	token, err := f.auth.CustomToken(ctx, user.UID)
	if err != nil {
		return "", apperr.Wrap(codeInternalError, "session token issuance failed", 502, err)
	}
	return token, nil
}

// VerifySessionToken validates a Firebase id token presented by a signed-in
// client and returns the account id. Used by the HTTP auth middleware.
func (f *Firebase) VerifySessionToken(ctx context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", errors.New("missing token")
	}
	decoded, err := f.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	return decoded.UID, nil
}
