package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/butykaidavid/read-rival-quest/metrics"
)

const jobTimeout = 5 * time.Minute

// StartScheduler runs the periodic leaderboard snapshot and the nightly
// streak reset. Callers own the returned scheduler and shut it down.
func StartScheduler(boards *LeaderboardService, profiles *ProfileService, every time.Duration) (gocron.Scheduler, error) {
	if every <= 0 {
		every = 15 * time.Minute
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	// Every interval: recompute leaderboards
	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := boards.SnapshotAll(ctx); err != nil {
				metrics.WorkerRuns.WithLabelValues("leaderboard", "error").Inc()
				log.Printf("[SCHEDULER] leaderboard snapshot failed: %v", err)
				return
			}
			metrics.WorkerRuns.WithLabelValues("leaderboard", "ok").Inc()
		}),
		gocron.WithName("leaderboard-snapshot"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}

	// Shortly after midnight UTC: zero streaks of readers who skipped a day
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			n, err := profiles.ResetLapsedStreaks(ctx)
			if err != nil {
				metrics.WorkerRuns.WithLabelValues("streak_reset", "error").Inc()
				log.Printf("[SCHEDULER] streak reset failed: %v", err)
				return
			}
			metrics.WorkerRuns.WithLabelValues("streak_reset", "ok").Inc()
			log.Printf("✅ [SCHEDULER] reset %d lapsed streak(s)", n)
		}),
		gocron.WithName("streak-reset"),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Printf("⏰ [SCHEDULER] started: leaderboards every %s, streak reset daily 00:05 UTC", every)
	return sched, nil
}
