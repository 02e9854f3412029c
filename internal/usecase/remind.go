package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kerokerotur/banars-app/internal/metrics"
	"github.com/kerokerotur/banars-app/internal/model"
)

const defaultLookaheadHours = 24

// Remind fans attendance reminders out to members who have not answered an
// event whose response deadline is inside the lookahead window. One member's
// failure never aborts the batch; unreachable player ids are deactivated so
// later runs skip them.
type Remind struct {
	Attendance  AttendanceRepository
	PushTargets PushTargetRepository
	Gateway     PushGateway

	now func() time.Time
}

func NewRemind(attendance AttendanceRepository, pushTargets PushTargetRepository, gateway PushGateway) *Remind {
	return &Remind{Attendance: attendance, PushTargets: pushTargets, Gateway: gateway, now: time.Now}
}

func (uc *Remind) WithClock(now func() time.Time) *Remind {
	uc.now = now
	return uc
}

type RemindInput struct {
	// LookaheadHours defaults to 24 when nil or non-positive.
	LookaheadHours *int
}

type RemindRecipientError struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
	Message string `json:"error"`
}

type RemindOutput struct {
	ProcessedEvents   int                    `json:"processedEvents"`
	SentNotifications int                    `json:"sentNotifications"`
	Errors            []RemindRecipientError `json:"errors"`
}

func (uc *Remind) Execute(ctx context.Context, in RemindInput) (RemindOutput, error) {
	lookahead := defaultLookaheadHours
	if in.LookaheadHours != nil && *in.LookaheadHours > 0 {
		lookahead = *in.LookaheadHours
	}

	now := uc.now()
	events, err := uc.Attendance.FindRemindTargetEvents(ctx, now, now.Add(time.Duration(lookahead)*time.Hour))
	if err != nil {
		return RemindOutput{}, fmt.Errorf("reminder target selection failed: %w", err)
	}

	out := RemindOutput{ProcessedEvents: len(events), Errors: []RemindRecipientError{}}
	for _, event := range events {
		userIDs, err := uc.Attendance.FindUnansweredUserIDs(ctx, event.ID)
		if err != nil {
			return out, fmt.Errorf("unanswered member lookup failed for event %s: %w", event.ID, err)
		}
		for _, userID := range userIDs {
			if err := uc.remindMember(ctx, event, userID, &out); err != nil {
				out.Errors = append(out.Errors, RemindRecipientError{
					EventID: event.ID,
					UserID:  userID,
					Message: err.Error(),
				})
				metrics.RemindErrors.Inc()
				log.Printf("reminder failed: event=%s user=%s: %v", event.ID, userID, err)
			}
		}
	}
	return out, nil
}

func (uc *Remind) remindMember(ctx context.Context, event model.ReminderEvent, userID string, out *RemindOutput) error {
	playerIDs, err := uc.PushTargets.FindActivePlayerIDs(ctx, userID)
	if err != nil {
		return err
	}
	// No push target is not a failure; the member simply cannot be reached.
	if len(playerIDs) == 0 {
		return nil
	}

	sent, err := uc.Gateway.Send(ctx, playerIDs,
		fmt.Sprintf("%s: attendance response due", event.Title),
		"Respond by "+event.ResponseDeadline.Format("2006-01-02 15:04"),
		map[string]string{
			"eventId": event.ID,
			"type":    "attendance_remind",
		})
	if err != nil {
		return err
	}

	out.SentNotifications += len(sent)
	metrics.RemindersSent.Add(float64(len(sent)))

	reached := make(map[string]bool, len(sent))
	for _, id := range sent {
		reached[id] = true
	}
	for _, playerID := range playerIDs {
		if reached[playerID] {
			continue
		}
		// Stale target: deactivate so the next run stops sending to it.
		if err := uc.PushTargets.Deactivate(ctx, userID, playerID); err != nil {
			log.Printf("push target deactivation failed: user=%s player=%s: %v", userID, playerID, err)
		}
	}
	return nil
}
