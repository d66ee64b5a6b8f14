package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/service"
)

const subscriptionSweepJob = "subscription-sweep"

// Sweeper is implemented by service.SubscriptionService.
type Sweeper interface {
	DailySweep(ctx context.Context) (service.SweepResult, error)
}

// Locker is implemented by cache.JobLock.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
	LastRun(ctx context.Context, name string) (time.Time, bool, error)
	MarkRun(ctx context.Context, name string, at time.Time, ttl time.Duration) error
}

// SubscriptionSweepWorker runs the daily subscription sweep. The job lock
// keeps replicas from sweeping at the same time, and the last-run marker
// keeps restarts from sweeping more than once per interval.
type SubscriptionSweepWorker struct {
	sweeper  Sweeper
	lock     Locker
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time
}

// NewSubscriptionSweepWorker constructs a SubscriptionSweepWorker. lock may
// be nil for single-instance deployments.
func NewSubscriptionSweepWorker(sweeper Sweeper, lock Locker, interval, lockTTL time.Duration) *SubscriptionSweepWorker {
	return &SubscriptionSweepWorker{
		sweeper:  sweeper,
		lock:     lock,
		interval: interval,
		lockTTL:  lockTTL,
		now:      time.Now,
	}
}

// Start sweeps once if a sweep is due, then on every tick until ctx is
// canceled.
func (w *SubscriptionSweepWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting subscription sweep worker")

	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Subscription sweep worker stopped")
			return
		}
	}
}

func (w *SubscriptionSweepWorker) run(ctx context.Context) {
	if w.lock != nil {
		release, ok, err := w.lock.Acquire(ctx, subscriptionSweepJob, w.lockTTL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to acquire subscription sweep lock")
			return
		}
		if !ok {
			log.Debug().Msg("Subscription sweep already running elsewhere")
			return
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Failed to release subscription sweep lock")
			}
		}()

		if !w.due(ctx) {
			return
		}
	}

	started := w.now()
	res, err := w.sweeper.DailySweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Subscription sweep failed")
		return
	}
	if w.lock != nil {
		if err := w.lock.MarkRun(ctx, subscriptionSweepJob, started, 2*w.interval); err != nil {
			log.Warn().Err(err).Msg("Failed to record subscription sweep run")
		}
	}
	log.Info().
		Int("warned", res.Warned).
		Int("expired", res.Expired).
		Int("renewed", res.Renewed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("took", w.now().Sub(started)).
		Msg("Subscription sweep finished")
}

// due reports whether the last recorded sweep is at least half an interval
// old. Regular ticks land a full interval apart; a restart inside the window
// is skipped. An unreadable marker counts as due.
func (w *SubscriptionSweepWorker) due(ctx context.Context) bool {
	last, ok, err := w.lock.LastRun(ctx, subscriptionSweepJob)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read last subscription sweep")
		return true
	}
	if !ok {
		return true
	}
	if elapsed := w.now().Sub(last); elapsed < w.interval/2 {
		log.Info().Time("last_run", last).Dur("elapsed", elapsed).Msg("Subscription sweep not due, skipping")
		return false
	}
	return true
}
