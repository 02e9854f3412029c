package usecase

import (
	"context"
	"time"

	"github.com/kerokerotur/banars-app/internal/line"
	"github.com/kerokerotur/banars-app/internal/model"
)

type fakeVerifier struct {
	claims line.Claims
	err    error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (line.Claims, error) {
	return f.claims, f.err
}

type fakeInvites struct {
	token model.InviteToken
	err   error
	calls int
}

func (f *fakeInvites) Validate(_ context.Context, _ string) (model.InviteToken, error) {
	f.calls++
	return f.token, f.err
}

type fakeUsers struct {
	byLineID     map[string]model.User
	byID         map[string]model.User
	upserted     []model.User
	upsertErr    error
	touched      []string
	touchErr     error
	findErr      error
	lastLoginAts []time.Time
	// missOnce makes the next FindByLineID miss, to stage lookup/insert races.
	missOnce bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byLineID: make(map[string]model.User),
		byID:     make(map[string]model.User),
	}
}

func (f *fakeUsers) add(user model.User) {
	f.byLineID[user.LineUserID] = user
	f.byID[user.ID] = user
}

func (f *fakeUsers) FindByLineID(_ context.Context, lineUserID string) (model.User, error) {
	if f.findErr != nil {
		return model.User{}, f.findErr
	}
	if f.missOnce {
		f.missOnce = false
		return model.User{}, model.ErrNotFound
	}
	user, ok := f.byLineID[lineUserID]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (model.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) Upsert(_ context.Context, user model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, user)
	f.add(user)
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, id)
	f.lastLoginAts = append(f.lastLoginAts, at)
	return nil
}

type fakeProfiles struct {
	byUserID  map[string]model.UserProfile
	upserted  []model.UserProfile
	upsertErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byUserID: make(map[string]model.UserProfile)}
}

func (f *fakeProfiles) FindByUserID(_ context.Context, userID string) (model.UserProfile, error) {
	profile, ok := f.byUserID[userID]
	if !ok {
		return model.UserProfile{}, model.ErrNotFound
	}
	return profile, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, profile model.UserProfile) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, profile)
	f.byUserID[profile.UserID] = profile
	return nil
}

type pushUpsert struct {
	userID   string
	playerID string
}

type fakePushTargets struct {
	active      map[string][]string
	upserts     []pushUpsert
	deactivated []pushUpsert
	upsertErr   error
	findErr     error
	deactErr    error
}

func newFakePushTargets() *fakePushTargets {
	return &fakePushTargets{active: make(map[string][]string)}
}

func (f *fakePushTargets) Upsert(_ context.Context, userID, playerID string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, pushUpsert{userID, playerID})
	return nil
}

func (f *fakePushTargets) FindActivePlayerIDs(_ context.Context, userID string) ([]string, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.active[userID], nil
}

func (f *fakePushTargets) Deactivate(_ context.Context, userID, playerID string) error {
	if f.deactErr != nil {
		return f.deactErr
	}
	f.deactivated = append(f.deactivated, pushUpsert{userID, playerID})
	remaining := f.active[userID][:0:0]
	for _, id := range f.active[userID] {
		if id != playerID {
			remaining = append(remaining, id)
		}
	}
	f.active[userID] = remaining
	return nil
}

type fakeAuth struct {
	createdID    string
	createErr    error
	sessionToken string
	sessionErr   error

	createdEmails []string
	createdMeta   []AccountMetadata
	sessionEmails []string
}

func (f *fakeAuth) CreateAccount(_ context.Context, email string, meta AccountMetadata) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdEmails = append(f.createdEmails, email)
	f.createdMeta = append(f.createdMeta, meta)
	return f.createdID, nil
}

func (f *fakeAuth) GenerateSessionToken(_ context.Context, email string) (string, error) {
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	f.sessionEmails = append(f.sessionEmails, email)
	return f.sessionToken, nil
}

type fakeAttendance struct {
	events     map[string]model.Event
	targets    []model.ReminderEvent
	unanswered map[string][]string
	answers    []model.Attendance

	targetsErr    error
	unansweredErr map[string]error
	upsertErr     error
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{
		events:        make(map[string]model.Event),
		unanswered:    make(map[string][]string),
		unansweredErr: make(map[string]error),
	}
}

func (f *fakeAttendance) FindEventByID(_ context.Context, eventID string) (model.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return model.Event{}, model.ErrNotFound
	}
	return event, nil
}

func (f *fakeAttendance) UpsertAnswer(_ context.Context, answer model.Attendance) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.answers = append(f.answers, answer)
	return nil
}

func (f *fakeAttendance) FindRemindTargetEvents(_ context.Context, now, until time.Time) ([]model.ReminderEvent, error) {
	if f.targetsErr != nil {
		return nil, f.targetsErr
	}
	var selected []model.ReminderEvent
	for _, event := range f.targets {
		if event.ResponseDeadline.After(now) && !event.ResponseDeadline.After(until) {
			selected = append(selected, event)
		}
	}
	return selected, nil
}

func (f *fakeAttendance) FindUnansweredUserIDs(_ context.Context, eventID string) ([]string, error) {
	if err := f.unansweredErr[eventID]; err != nil {
		return nil, err
	}
	return f.unanswered[eventID], nil
}

type gatewayCall struct {
	playerIDs []string
	title     string
	body      string
	data      map[string]string
}

type fakeGateway struct {
	calls []gatewayCall
	// respond maps the first player id of a call to the succeeded subset; a
	// nil map echoes every id back as reached.
	respond map[string][]string
	errFor  map[string]error
}

func (f *fakeGateway) Send(_ context.Context, playerIDs []string, title, body string, data map[string]string) ([]string, error) {
	f.calls = append(f.calls, gatewayCall{playerIDs: playerIDs, title: title, body: body, data: data})
	if len(playerIDs) > 0 {
		if err := f.errFor[playerIDs[0]]; err != nil {
			return nil, err
		}
		if f.respond != nil {
			if subset, ok := f.respond[playerIDs[0]]; ok {
				return subset, nil
			}
		}
	}
	return playerIDs, nil
}
