package model

import (
	"errors"
	"time"
)

// Sentinel errors shared by the repository ports. Implementations translate
// storage-level failures (pgx.ErrNoRows, unique violations) into these so the
// use cases never see driver vocabulary.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

// User is the durable local account for one LINE identity.
type User struct {
	ID          string
	LineUserID  string
	Status      string
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserProfile carries the mutable display attributes, refreshed from the
// latest LINE profile on every signup/login.
type UserProfile struct {
	UserID      string
	DisplayName string
	AvatarURL   *string
	SyncedAt    time.Time
}

// InviteToken is the stored form of an invitation: only the SHA-256 digest of
// the plaintext is kept.
type InviteToken struct {
	TokenHash string
	ExpiresAt time.Time
	IssuedBy  string
	CreatedAt time.Time
}

// PushTarget maps a user to one OneSignal player id. Unreachable targets are
// deactivated, never deleted.
type PushTarget struct {
	UserID    string
	PlayerID  string
	Active    bool
	UpdatedAt time.Time
}

type AttendanceStatus string

const (
	AttendanceAttending    AttendanceStatus = "attending"
	AttendanceNotAttending AttendanceStatus = "not_attending"
	AttendancePending      AttendanceStatus = "pending"
)

// ValidAttendanceStatus reports whether s is one of the accepted answers.
func ValidAttendanceStatus(s AttendanceStatus) bool {
	switch s {
	case AttendanceAttending, AttendanceNotAttending, AttendancePending:
		return true
	}
	return false
}

type Attendance struct {
	EventID   string
	UserID    string
	Status    AttendanceStatus
	Comment   *string
	UpdatedAt time.Time
}

// Event is the slice of an event the attendance flows care about.
type Event struct {
	ID               string
	Title            string
	ResponseDeadline *time.Time
}

// ReminderEvent is an event whose response deadline falls inside the reminder
// lookahead window; the deadline is always set here.
type ReminderEvent struct {
	ID               string
	Title            string
	ResponseDeadline time.Time
}
