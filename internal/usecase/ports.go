package usecase

import (
	"context"
	"time"

	"github.com/kerokerotur/banars-app/internal/line"
	"github.com/kerokerotur/banars-app/internal/model"
)

// Outbound ports consumed by the use cases. The pgx store in
// internal/repository implements the repository ports; internal/authprovider
// and internal/push implement the gateway ports. Repositories return
// model.ErrNotFound / model.ErrConflict instead of driver errors.

type UserRepository interface {
	FindByLineID(ctx context.Context, lineUserID string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	// Upsert returns model.ErrConflict when another account already owns the
	// LINE user id; signup maps that to the already-registered branch.
	Upsert(ctx context.Context, user model.User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (model.UserProfile, error)
	Upsert(ctx context.Context, profile model.UserProfile) error
}

type PushTargetRepository interface {
	Upsert(ctx context.Context, userID, playerID string) error
	FindActivePlayerIDs(ctx context.Context, userID string) ([]string, error)
	Deactivate(ctx context.Context, userID, playerID string) error
}

type AttendanceRepository interface {
	FindEventByID(ctx context.Context, eventID string) (model.Event, error)
	UpsertAnswer(ctx context.Context, answer model.Attendance) error
	// FindRemindTargetEvents selects events whose response deadline lies in
	// (now, until].
	FindRemindTargetEvents(ctx context.Context, now, until time.Time) ([]model.ReminderEvent, error)
	// FindUnansweredUserIDs returns active members with no answer or a still
	// pending one for the event.
	FindUnansweredUserIDs(ctx context.Context, eventID string) ([]string, error)
}

// AuthProvider is the external auth gateway that owns real sessions. The
// session-transfer token it mints is opaque to this core.
type AuthProvider interface {
	CreateAccount(ctx context.Context, email string, meta AccountMetadata) (string, error)
	GenerateSessionToken(ctx context.Context, email string) (string, error)
}

type AccountMetadata struct {
	LineUserID  string
	DisplayName string
	AvatarURL   *string
}

// PushGateway fans a notification out to a batch of player ids and reports the
// subset it actually reached.
type PushGateway interface {
	Send(ctx context.Context, playerIDs []string, title, body string, data map[string]string) ([]string, error)
}

// TokenVerifier validates a LINE id token assertion.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (line.Claims, error)
}

// InviteValidator checks an invite token plaintext.
type InviteValidator interface {
	Validate(ctx context.Context, plaintext string) (model.InviteToken, error)
}
