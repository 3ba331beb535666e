package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"modgarage/internal/metrics"
	"modgarage/internal/storage"
	"modgarage/internal/syncbus"
	"modgarage/internal/tracking"
)

// Store is the slice of the order store the refresher needs.
type Store interface {
	ListOrders(ctx context.Context) ([]storage.Order, error)
	ReplaceOrders(ctx context.Context, orders []storage.Order) error
}

// Refresher periodically recomputes tracking stages for active orders and
// writes all changes back as one collection replace per pass. Because the
// stage engine is a pure function of wall-clock time, overlapping passes
// compute the same result and last-write-wins is safe.
type Refresher struct {
	store    Store
	bus      syncbus.Bus
	interval time.Duration
	logger   *zap.Logger

	timeNow func() time.Time

	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewRefresher(store Store, bus syncbus.Bus, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		store:          store,
		bus:            bus,
		interval:       interval,
		logger:         logger,
		timeNow:        func() time.Time { return time.Now().UTC() },
		shutdownSignal: make(chan struct{}),
	}
}

// Run performs one immediate pass, then re-runs on the configured interval
// until the context is cancelled or Shutdown is called.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("starting stage refresher", zap.Duration("interval", r.interval))
	r.wg.Add(1)
	defer r.wg.Done()

	if err := r.Pass(ctx); err != nil {
		r.logger.Error("initial stage refresh pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Pass(ctx); err != nil {
				r.logger.Error("stage refresh pass failed", zap.Error(err))
			}
		case <-r.shutdownSignal:
			r.logger.Info("stage refresher received shutdown signal, stopping")
			return
		case <-ctx.Done():
			r.logger.Info("stage refresher context cancelled, stopping")
			return
		}
	}
}

// Shutdown stops the loop and waits for an in-flight pass to finish.
func (r *Refresher) Shutdown(ctx context.Context) {
	r.stopOnce.Do(func() {
		close(r.shutdownSignal)

		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			r.logger.Info("stage refresher shutdown complete")
		case <-ctx.Done():
			r.logger.Warn("stage refresher shutdown timed out")
		}
	})
}

// Pass recomputes every active order's stage. Cancelled orders stay frozen
// and delivered orders are terminal, so both are skipped. A stored stage
// never regresses even if the wall clock moved backwards.
func (r *Refresher) Pass(ctx context.Context) error {
	metrics.RefreshPassesTotal.Inc()

	orders, err := r.store.ListOrders(ctx)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("refresh_pass").Inc()
		return fmt.Errorf("failed to read orders: %w", err)
	}

	now := r.timeNow()
	advanced := 0
	for i := range orders {
		o := &orders[i]
		if o.Status != storage.StatusConfirmed || tracking.Terminal(o.TrackingStage) {
			continue
		}
		next := tracking.Later(o.TrackingStage, tracking.StageAt(o.CreatedAt, now))
		if next == o.TrackingStage {
			continue
		}
		r.logger.Debug("advancing tracking stage",
			zap.String("order_id", o.ID),
			zap.String("from", string(o.TrackingStage)),
			zap.String("to", string(next)))
		o.TrackingStage = next
		o.UpdatedAt = now
		advanced++
	}

	if advanced == 0 {
		return nil
	}

	// All changes land in one collection replace so a concurrent reader
	// never sees a partially-updated pass.
	if err := r.store.ReplaceOrders(ctx, orders); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("refresh_pass").Inc()
		return fmt.Errorf("failed to write refreshed orders: %w", err)
	}
	metrics.StageAdvancesTotal.Add(float64(advanced))

	if err := r.bus.Publish(ctx, storage.CollectionOrders); err != nil {
		// The write already succeeded; other clients catch up on their
		// next snapshot read.
		r.logger.Warn("failed to publish sync notification", zap.Error(err))
	}

	r.logger.Info("stage refresh pass applied", zap.Int("advanced", advanced))
	return nil
}
