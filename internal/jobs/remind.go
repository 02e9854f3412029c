package jobs

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kerokerotur/banars-app/internal/config"
	"github.com/kerokerotur/banars-app/internal/usecase"
)

const lockKey = "jobs:attendance-remind:lock"

// StartRemindJob periodically runs the attendance reminder. When a redis
// client is configured, a SetNX lock keeps concurrent replicas from double
// sending within the same tick window.
func StartRemindJob(ctx context.Context, cfg config.Config, remind *usecase.Remind, locker *redis.Client) {
	if !cfg.RemindJobEnabled {
		return
	}
	interval := cfg.RemindJobInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.RemindJobTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				runTick(tickCtx, cfg, remind, locker, interval)
				cancel()
			}
		}
	}()
}

func runTick(ctx context.Context, cfg config.Config, remind *usecase.Remind, locker *redis.Client, interval time.Duration) {
	if locker != nil {
		acquired, err := locker.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), interval/2).Result()
		if err != nil {
			log.Printf("remind job lock error: %v", err)
			return
		}
		if !acquired {
			return
		}
	}

	lookahead := cfg.RemindLookaheadHours
	out, err := remind.Execute(ctx, usecase.RemindInput{LookaheadHours: &lookahead})
	if err != nil {
		log.Printf("remind job error: %v", err)
		return
	}
	if out.ProcessedEvents > 0 || len(out.Errors) > 0 {
		log.Printf("remind job processed %d events, sent %d notifications, %d errors",
			out.ProcessedEvents, out.SentNotifications, len(out.Errors))
	}
}
