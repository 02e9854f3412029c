package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/model"
)

// GetMe resolves the authenticated account's user record and profile.
type GetMe struct {
	Users    UserRepository
	Profiles ProfileRepository
}

func NewGetMe(users UserRepository, profiles ProfileRepository) *GetMe {
	return &GetMe{Users: users, Profiles: profiles}
}

type MeOutput struct {
	UserID      string     `json:"userId"`
	LineUserID  string     `json:"lineUserId"`
	Status      string     `json:"status"`
	DisplayName string     `json:"displayName"`
	AvatarURL   *string    `json:"avatarUrl"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
}

func (uc *GetMe) Execute(ctx context.Context, userID string) (MeOutput, error) {
	user, err := uc.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return MeOutput{}, apperr.New(CodeUserNotFound, "user not found", 404)
		}
		return MeOutput{}, apperr.Wrap(CodeInternalError, "user lookup failed", 500, err)
	}
	profile, err := uc.Profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return MeOutput{}, apperr.New(CodeUserNotFound, "user profile not found", 404)
		}
		return MeOutput{}, apperr.Wrap(CodeInternalError, "profile lookup failed", 500, err)
	}

	return MeOutput{
		UserID:      user.ID,
		LineUserID:  user.LineUserID,
		Status:      user.Status,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		LastLoginAt: user.LastLoginAt,
	}, nil
}
