package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/line"
	"github.com/kerokerotur/banars-app/internal/model"
)

func newLoginFixture() (*Login, *fakeVerifier, *fakeUsers, *fakePushTargets, *fakeAuth) {
	verifier := &fakeVerifier{claims: line.Claims{Sub: "U123"}}
	users := newFakeUsers()
	push := newFakePushTargets()
	auth := &fakeAuth{sessionToken: "session-token"}
	uc := NewLogin(verifier, users, push, auth).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	return uc, verifier, users, push, auth
}

func TestLoginReturnsSessionToken(t *testing.T) {
	uc, _, users, _, auth := newLoginFixture()
	users.add(model.User{ID: "acct-1", LineUserID: "U123", Status: model.UserStatusActive})

	out, err := uc.Execute(context.Background(), LoginInput{IDToken: "id-token"})
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if out.UserID != "acct-1" || out.SessionTransferToken != "session-token" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if auth.sessionEmails[0] != "line_u123@line.local" {
		t.Fatalf("expected derived email, got %s", auth.sessionEmails[0])
	}
	if len(users.touched) != 1 || users.touched[0] != "acct-1" {
		t.Fatalf("expected last-login refresh, got %v", users.touched)
	}
}

func TestLoginEmailDerivationMatchesSignup(t *testing.T) {
	// Signup and login must derive byte-identical emails for the same subject.
	signupUC, signupVerifier, _, _, _, _, signupAuth := newSignupFixture()
	signupVerifier.claims = line.Claims{Sub: "U-42#abc", Name: "X"}
	in := validSignupInput()
	in.Profile.LineUserID = "U-42#abc"
	if _, err := signupUC.Execute(context.Background(), in); err != nil {
		t.Fatalf("signup error: %v", err)
	}

	loginUC, loginVerifier, users, _, loginAuth := newLoginFixture()
	loginVerifier.claims = line.Claims{Sub: "U-42#abc"}
	users.add(model.User{ID: "acct-1", LineUserID: "U-42#abc", Status: model.UserStatusActive})
	if _, err := loginUC.Execute(context.Background(), LoginInput{IDToken: "id-token"}); err != nil {
		t.Fatalf("login error: %v", err)
	}

	if signupAuth.createdEmails[0] != loginAuth.sessionEmails[0] {
		t.Fatalf("derivations differ: %s vs %s", signupAuth.createdEmails[0], loginAuth.sessionEmails[0])
	}
}

func TestLoginUnknownUserIs404(t *testing.T) {
	uc, _, _, _, _ := newLoginFixture()

	_, err := uc.Execute(context.Background(), LoginInput{IDToken: "id-token"})
	appErr, ok := apperr.From(err)
	if !ok || appErr.Code != CodeUserNotFound || appErr.Status != 404 {
		t.Fatalf("expected user_not_found 404, got %v", err)
	}
}

func TestLoginBlockedUserIs403(t *testing.T) {
	uc, _, users, _, _ := newLoginFixture()
	users.add(model.User{ID: "acct-1", LineUserID: "U123", Status: model.UserStatusBlocked})

	_, err := uc.Execute(context.Background(), LoginInput{IDToken: "id-token"})
	appErr, ok := apperr.From(err)
	if !ok || appErr.Code != CodeUserBlocked || appErr.Status != 403 {
		t.Fatalf("expected user_blocked 403, got %v", err)
	}
	if appErr.Code == CodeUserNotFound {
		t.Fatalf("blocked must be distinguishable from nonexistent")
	}
}

func TestLoginRemapsVerifierErrors(t *testing.T) {
	uc, verifier, _, _, _ := newLoginFixture()
	verifier.err = apperr.Wrap(line.CodeTokenInvalid, "LINE id token verification failed", 401, errors.New("bad signature"))

	_, err := uc.Execute(context.Background(), LoginInput{IDToken: "id-token"})
	appErr, ok := apperr.From(err)
	if !ok || appErr.Code != CodeTokenInvalid {
		t.Fatalf("expected login's token_invalid code, got %v", err)
	}
	if appErr.Status != 401 || appErr.Detail["reason"] != "bad signature" {
		t.Fatalf("expected status and detail preserved, got %+v", appErr)
	}
}

func TestLoginNeverCreatesAccounts(t *testing.T) {
	uc, _, users, _, auth := newLoginFixture()

	_, _ = uc.Execute(context.Background(), LoginInput{IDToken: "id-token"})
	if len(users.upserted) != 0 || len(auth.createdEmails) != 0 {
		t.Fatalf("login must not provision accounts")
	}
}

func TestLoginRegistersOptionalPlayerID(t *testing.T) {
	uc, _, users, push, _ := newLoginFixture()
	users.add(model.User{ID: "acct-1", LineUserID: "U123", Status: model.UserStatusActive})

	if _, err := uc.Execute(context.Background(), LoginInput{IDToken: "id-token", PlayerID: strPtr(" player-5 ")}); err != nil {
		t.Fatalf("login error: %v", err)
	}
	if len(push.upserts) != 1 || push.upserts[0] != (pushUpsert{"acct-1", "player-5"}) {
		t.Fatalf("expected trimmed player registration, got %+v", push.upserts)
	}
}

func TestLoginLastLoginFailureIsNotFatal(t *testing.T) {
	uc, _, users, _, _ := newLoginFixture()
	users.add(model.User{ID: "acct-1", LineUserID: "U123", Status: model.UserStatusActive})
	users.touchErr = errors.New("write failed")

	if _, err := uc.Execute(context.Background(), LoginInput{IDToken: "id-token"}); err != nil {
		t.Fatalf("last-login failure must not fail login: %v", err)
	}
}
