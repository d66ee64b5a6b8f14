package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconcileFunc repairs up to batch rows left behind by a failed secondary
// write and returns how many it fixed. Implemented by
// service.ContactRequestService.ReconcileConverted and
// service.SubscriptionService.ReconcileSuppliers.
type ReconcileFunc func(ctx context.Context, batch int) (int, error)

// ReconcileWorker periodically drains the backlog of one ReconcileFunc.
type ReconcileWorker struct {
	name      string
	reconcile ReconcileFunc
	interval  time.Duration
	batch     int
}

// NewReconcileWorker constructs a ReconcileWorker. name only labels logs.
func NewReconcileWorker(name string, reconcile ReconcileFunc, interval time.Duration, batch int) *ReconcileWorker {
	if batch <= 0 {
		batch = 100
	}
	return &ReconcileWorker{
		name:      name,
		reconcile: reconcile,
		interval:  interval,
		batch:     batch,
	}
}

// Start begins the reconcile loop and listens for context cancellation.
func (w *ReconcileWorker) Start(ctx context.Context) {
	log.Info().Str("job", w.name).Dur("interval", w.interval).Msg("Starting reconcile worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Str("job", w.name).Msg("Reconcile worker stopped")
			return
		}
	}
}

func (w *ReconcileWorker) run(ctx context.Context) {
	for {
		n, err := w.reconcile(ctx, w.batch)
		if err != nil {
			log.Error().Err(err).Str("job", w.name).Msg("Reconcile pass failed")
			return
		}
		// A short batch means the backlog is drained.
		if n < w.batch || ctx.Err() != nil {
			return
		}
	}
}
