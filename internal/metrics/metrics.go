package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banars_reminder_notifications_sent_total",
		Help: "Push notification recipients reached by attendance reminders.",
	})
	RemindErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banars_reminder_errors_total",
		Help: "Per-recipient failures during attendance reminder fan-out.",
	})
	Signups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banars_signups_total",
		Help: "Accounts provisioned through invite signup.",
	})
)
