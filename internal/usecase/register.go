package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/model"
)

// Error codes owned by attendance registration.
const (
	CodeValidationError        = "validation_error"
	CodeEventNotFound          = "event_not_found"
	CodeForbiddenAfterDeadline = "forbidden_after_deadline"
)

// RegisterAttendance records a member's answer for an event. Answers are
// frozen once the response deadline has passed.
type RegisterAttendance struct {
	Attendance AttendanceRepository

	now func() time.Time
}

func NewRegisterAttendance(attendance AttendanceRepository) *RegisterAttendance {
	return &RegisterAttendance{Attendance: attendance, now: time.Now}
}

func (uc *RegisterAttendance) WithClock(now func() time.Time) *RegisterAttendance {
	uc.now = now
	return uc
}

type RegisterAttendanceInput struct {
	EventID string
	UserID  string
	Status  model.AttendanceStatus
	Comment *string
}

func (uc *RegisterAttendance) Execute(ctx context.Context, in RegisterAttendanceInput) error {
	if strings.TrimSpace(in.EventID) == "" {
		return apperr.New(CodeValidationError, "eventId is required", 400)
	}
	if !model.ValidAttendanceStatus(in.Status) {
		return apperr.New(CodeValidationError, "status must be attending, not_attending or pending", 400)
	}

	event, err := uc.Attendance.FindEventByID(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return apperr.New(CodeEventNotFound, "event not found", 404)
		}
		return apperr.Wrap(CodeInternalError, "event lookup failed", 500, err)
	}
	if event.ResponseDeadline != nil && uc.now().After(*event.ResponseDeadline) {
		return apperr.New(CodeForbiddenAfterDeadline, "the response deadline has passed", 403)
	}

	err = uc.Attendance.UpsertAnswer(ctx, model.Attendance{
		EventID:   in.EventID,
		UserID:    in.UserID,
		Status:    in.Status,
		Comment:   in.Comment,
		UpdatedAt: uc.now().UTC(),
	})
	if err != nil {
		return apperr.Wrap(CodeInternalError, "attendance persistence failed", 500, err)
	}
	return nil
}
