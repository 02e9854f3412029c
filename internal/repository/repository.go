package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kerokerotur/banars-app/internal/model"
)

const uniqueViolation = "23505"

// Store holds the pgx pool; the Users/Profiles/Invites/PushTargets/Attendance
// views expose it under the port method names the use cases consume. Driver
// errors are translated to the model sentinels at this boundary.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Users() UserStore             { return UserStore{s} }
func (s *Store) Profiles() ProfileStore       { return ProfileStore{s} }
func (s *Store) Invites() InviteStore         { return InviteStore{s} }
func (s *Store) PushTargets() PushTargetStore { return PushTargetStore{s} }
func (s *Store) Attendance() AttendanceStore  { return AttendanceStore{s} }

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrConflict
	}
	return err
}

// Users

type UserStore struct {
	s *Store
}

func (r UserStore) FindByLineID(ctx context.Context, lineUserID string) (model.User, error) {
	return scanUser(r.s.pool.QueryRow(ctx, `
		SELECT id, line_user_id, status, last_login_at, created_at, updated_at
		FROM users
		WHERE line_user_id = $1
	`, lineUserID))
}

func (r UserStore) FindByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.s.pool.QueryRow(ctx, `
		SELECT id, line_user_id, status, last_login_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id))
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.LineUserID,
		&user.Status,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, translate(err)
	}
	return user, nil
}

// Upsert inserts or refreshes the account row keyed by id. A unique violation
// on line_user_id surfaces as model.ErrConflict so signup can treat a lost
// lookup/insert race as "already registered".
func (r UserStore) Upsert(ctx context.Context, user model.User) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO users (id, line_user_id, status, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, user.ID, user.LineUserID, user.Status, user.LastLoginAt, user.CreatedAt, user.UpdatedAt)
	return translate(err)
}

func (r UserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.s.pool.Exec(ctx, `
		UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2
	`, at, id)
	return translate(err)
}

// Profiles

type ProfileStore struct {
	s *Store
}

func (r ProfileStore) FindByUserID(ctx context.Context, userID string) (model.UserProfile, error) {
	var profile model.UserProfile
	err := r.s.pool.QueryRow(ctx, `
		SELECT user_id, display_name, avatar_url, synced_at
		FROM user_profiles
		WHERE user_id = $1
	`, userID).Scan(&profile.UserID, &profile.DisplayName, &profile.AvatarURL, &profile.SyncedAt)
	if err != nil {
		return model.UserProfile{}, translate(err)
	}
	return profile, nil
}

func (r ProfileStore) Upsert(ctx context.Context, profile model.UserProfile) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, display_name, avatar_url, synced_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    avatar_url = EXCLUDED.avatar_url,
		    synced_at = EXCLUDED.synced_at
	`, profile.UserID, profile.DisplayName, profile.AvatarURL, profile.SyncedAt)
	return translate(err)
}

// Invite tokens

type InviteStore struct {
	s *Store
}

func (r InviteStore) Insert(ctx context.Context, token model.InviteToken) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO invite_tokens (token_hash, expires_at, issued_by, created_at)
		VALUES ($1, $2, $3, $4)
	`, token.TokenHash, token.ExpiresAt, token.IssuedBy, token.CreatedAt)
	return translate(err)
}

func (r InviteStore) FindByHash(ctx context.Context, tokenHash string) (model.InviteToken, error) {
	var token model.InviteToken
	err := r.s.pool.QueryRow(ctx, `
		SELECT token_hash, expires_at, issued_by, created_at
		FROM invite_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&token.TokenHash, &token.ExpiresAt, &token.IssuedBy, &token.CreatedAt)
	if err != nil {
		return model.InviteToken{}, translate(err)
	}
	return token, nil
}

// Push targets

type PushTargetStore struct {
	s *Store
}

func (r PushTargetStore) Upsert(ctx context.Context, userID, playerID string) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO push_targets (user_id, player_id, active, updated_at)
		VALUES ($1, $2, true, now())
		ON CONFLICT (user_id, player_id) DO UPDATE
		SET active = true, updated_at = now()
	`, userID, playerID)
	return translate(err)
}

func (r PushTargetStore) FindActivePlayerIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.s.pool.Query(ctx, `
		SELECT player_id FROM push_targets
		WHERE user_id = $1 AND active = true
		ORDER BY player_id
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var playerIDs []string
	for rows.Next() {
		var playerID string
		if err := rows.Scan(&playerID); err != nil {
			return nil, translate(err)
		}
		playerIDs = append(playerIDs, playerID)
	}
	return playerIDs, rows.Err()
}

// Deactivate marks the target unreachable; rows are never deleted so the
// history of a player id survives.
func (r PushTargetStore) Deactivate(ctx context.Context, userID, playerID string) error {
	_, err := r.s.pool.Exec(ctx, `
		UPDATE push_targets SET active = false, updated_at = now()
		WHERE user_id = $1 AND player_id = $2
	`, userID, playerID)
	return translate(err)
}

// Events and attendance

type AttendanceStore struct {
	s *Store
}

func (r AttendanceStore) FindEventByID(ctx context.Context, eventID string) (model.Event, error) {
	var event model.Event
	err := r.s.pool.QueryRow(ctx, `
		SELECT id, title, response_deadline FROM events WHERE id = $1
	`, eventID).Scan(&event.ID, &event.Title, &event.ResponseDeadline)
	if err != nil {
		return model.Event{}, translate(err)
	}
	return event, nil
}

func (r AttendanceStore) UpsertAnswer(ctx context.Context, answer model.Attendance) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO attendances (event_id, user_id, status, comment, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = EXCLUDED.status,
		    comment = EXCLUDED.comment,
		    updated_at = EXCLUDED.updated_at
	`, answer.EventID, answer.UserID, answer.Status, answer.Comment, answer.UpdatedAt)
	return translate(err)
}

func (r AttendanceStore) FindRemindTargetEvents(ctx context.Context, now, until time.Time) ([]model.ReminderEvent, error) {
	rows, err := r.s.pool.Query(ctx, `
		SELECT id, title, response_deadline
		FROM events
		WHERE response_deadline IS NOT NULL
		  AND response_deadline > $1
		  AND response_deadline <= $2
		ORDER BY response_deadline
	`, now, until)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var events []model.ReminderEvent
	for rows.Next() {
		var event model.ReminderEvent
		if err := rows.Scan(&event.ID, &event.Title, &event.ResponseDeadline); err != nil {
			return nil, translate(err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// FindUnansweredUserIDs returns active members who have no attendance row for
// the event or whose answer is still pending. Declines count as answered.
func (r AttendanceStore) FindUnansweredUserIDs(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.s.pool.Query(ctx, `
		SELECT u.id
		FROM users u
		LEFT JOIN attendances a ON a.user_id = u.id AND a.event_id = $1
		WHERE u.status = 'active'
		  AND (a.status IS NULL OR a.status = 'pending')
		ORDER BY u.id
	`, eventID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, translate(err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}
