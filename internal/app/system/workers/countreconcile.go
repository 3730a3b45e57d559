// internal/app/system/workers/countreconcile.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CountSource is one materialized count the reconciler keeps honest: IDs
// lists the owning documents and Reconcile recounts one of them, reporting
// whether the stored value had drifted.
type CountSource struct {
	Name      string
	IDs       func(ctx context.Context) ([]primitive.ObjectID, error)
	Reconcile func(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// CountReconciler is a background worker that periodically re-derives
// member and subscriber counts from the ledgers. Normal writes already
// recount inside their transaction; this catches rows edited by hand or by
// a process that died between the ledger write and the recount.
type CountReconciler struct {
	sources  []CountSource
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCountReconciler creates a new count reconciliation worker.
//
// Parameters:
//   - logger: zap logger for logging
//   - interval: how often to run a full pass (e.g., 15 minutes)
//   - sources: the counts to reconcile, visited in order
func NewCountReconciler(logger *zap.Logger, interval time.Duration, sources ...CountSource) *CountReconciler {
	return &CountReconciler{
		sources:  sources,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background reconciliation loop.
func (w *CountReconciler) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("count reconcile worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *CountReconciler) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("count reconcile worker stopped")
}

func (w *CountReconciler) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single pass over every source and returns how many
// counts were corrected. A failure on one id is logged and skipped.
func (w *CountReconciler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fixed := 0
	for _, src := range w.sources {
		ids, err := src.IDs(ctx)
		if err != nil {
			w.log.Error("count reconcile: list failed", zap.String("source", src.Name), zap.Error(err))
			continue
		}
		for _, id := range ids {
			select {
			case <-w.stopCh:
				return fixed
			default:
			}
			drifted, err := src.Reconcile(ctx, id)
			if err != nil {
				w.log.Warn("count reconcile failed",
					zap.String("source", src.Name),
					zap.String("id", id.Hex()),
					zap.Error(err))
				continue
			}
			if drifted {
				fixed++
				w.log.Info("count corrected", zap.String("source", src.Name), zap.String("id", id.Hex()))
			}
		}
	}
	return fixed
}
