// services/scheduler.go
package services

import (
	"context"
	"time"

	"financial-matrix/utils"

	"github.com/go-co-op/gocron/v2"
)

// SessionPruner is implemented by providers that keep their own session rows.
type SessionPruner interface {
	PruneSessions(ctx context.Context) (int64, error)
}

// StartScheduler runs housekeeping jobs: the gate memo sweep and, when the
// provider supports it, pruning of expired sessions. pruner may be nil.
func StartScheduler(gate *AccessGate, pruner SessionPruner, sweepEvery time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	log := utils.Component("scheduler")

	if sweepEvery > 0 {
		// Every sweepEvery: evict stale access decisions
		_, err = sched.NewJob(
			gocron.DurationJob(sweepEvery),
			gocron.NewTask(func() {
				if n := gate.Sweep(); n > 0 {
					log.Debug("gate memo swept", "evicted", n)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	if pruner != nil {
		// Hourly: drop expired and revoked sessions
		_, err = sched.NewJob(
			gocron.DurationJob(time.Hour),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				n, err := pruner.PruneSessions(ctx)
				if err != nil {
					log.Error("session prune failed", "error", err)
					return
				}
				if n > 0 {
					log.Info("expired sessions pruned", "count", n)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
