package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"modgarage/internal/storage"
	mock_syncbus "modgarage/internal/syncbus/mocks"
	"modgarage/internal/tracking"
)

type memStore struct {
	orders   []storage.Order
	replaced int
	listErr  error
}

func (m *memStore) ListOrders(ctx context.Context) ([]storage.Order, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]storage.Order, len(m.orders))
	copy(out, m.orders)
	return out, nil
}

func (m *memStore) ReplaceOrders(ctx context.Context, orders []storage.Order) error {
	m.orders = orders
	m.replaced++
	return nil
}

func confirmedOrder(id string, createdAt time.Time, stage tracking.Stage) storage.Order {
	return storage.Order{
		ID:            id,
		BuyerName:     "Asha",
		Title:         "Wrap",
		Status:        storage.StatusConfirmed,
		TrackingStage: stage,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func newTestRefresher(t *testing.T, store Store, now time.Time) (*Refresher, *mock_syncbus.MockBus) {
	t.Helper()
	ctrl := gomock.NewController(t)
	bus := mock_syncbus.NewMockBus(ctrl)
	r := NewRefresher(store, bus, time.Minute, zap.NewNop())
	r.timeNow = func() time.Time { return now }
	return r, bus
}

func TestPassAdvancesStagesAtomically(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	store := &memStore{orders: []storage.Order{
		confirmedOrder("o-30h", now.Add(-30*time.Hour), tracking.StageOrderConfirmed),
		confirmedOrder("o-80h", now.Add(-80*time.Hour), tracking.StageOrderConfirmed),
		confirmedOrder("o-200h", now.Add(-200*time.Hour), tracking.StageProcessing),
		confirmedOrder("o-fresh", now, tracking.StageOrderConfirmed),
	}}
	r, bus := newTestRefresher(t, store, now)
	bus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).Return(nil)

	require.NoError(t, r.Pass(ctx))

	// All changes were applied in a single replace.
	assert.Equal(t, 1, store.replaced)

	byID := map[string]storage.Order{}
	for _, o := range store.orders {
		byID[o.ID] = o
	}
	assert.Equal(t, tracking.StageProcessing, byID["o-30h"].TrackingStage)
	assert.Equal(t, tracking.StageShipped, byID["o-80h"].TrackingStage)
	assert.Equal(t, tracking.StageDelivered, byID["o-200h"].TrackingStage)
	assert.Equal(t, tracking.StageOrderConfirmed, byID["o-fresh"].TrackingStage)
}

func TestPassSkipsCancelledAndDelivered(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	cancelled := confirmedOrder("o-cancelled", now.Add(-300*time.Hour), tracking.StageProcessing)
	cancelled.Status = storage.StatusCancelled
	delivered := confirmedOrder("o-delivered", now.Add(-300*time.Hour), tracking.StageDelivered)

	store := &memStore{orders: []storage.Order{cancelled, delivered}}
	r, _ := newTestRefresher(t, store, now)

	require.NoError(t, r.Pass(ctx))

	// Nothing changed, so nothing was written and nothing was published.
	assert.Zero(t, store.replaced)
	assert.Equal(t, tracking.StageProcessing, store.orders[0].TrackingStage)
	assert.Equal(t, storage.StatusCancelled, store.orders[0].Status)
}

func TestPassNeverRegressesStage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	// The stored stage is ahead of what the clock says, as after a
	// backward clock adjustment. The pass must leave it alone.
	store := &memStore{orders: []storage.Order{
		confirmedOrder("o-1", now.Add(-1*time.Hour), tracking.StageShipped),
	}}
	r, _ := newTestRefresher(t, store, now)

	require.NoError(t, r.Pass(ctx))

	assert.Zero(t, store.replaced)
	assert.Equal(t, tracking.StageShipped, store.orders[0].TrackingStage)
}

func TestPassIsDeterministicAcrossReruns(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	store := &memStore{orders: []storage.Order{
		confirmedOrder("o-1", now.Add(-30*time.Hour), tracking.StageOrderConfirmed),
	}}
	r, bus := newTestRefresher(t, store, now)
	bus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).Return(nil)

	require.NoError(t, r.Pass(ctx))
	first := store.orders[0]

	// A second pass at the same wall-clock instant computes the same
	// result and applies nothing.
	require.NoError(t, r.Pass(ctx))
	assert.Equal(t, 1, store.replaced)
	assert.Equal(t, first.TrackingStage, store.orders[0].TrackingStage)
}

func TestPassStoreError(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	store := &memStore{listErr: errors.New("disk gone")}
	r, _ := newTestRefresher(t, store, now)

	err := r.Pass(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read orders")
}

func TestPassPublishFailureDoesNotFailPass(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	store := &memStore{orders: []storage.Order{
		confirmedOrder("o-1", now.Add(-30*time.Hour), tracking.StageOrderConfirmed),
	}}
	r, bus := newTestRefresher(t, store, now)
	bus.EXPECT().Publish(gomock.Any(), storage.CollectionOrders).Return(errors.New("broker down"))

	require.NoError(t, r.Pass(ctx))
	assert.Equal(t, 1, store.replaced)
}

func TestRunShutdown(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	r, _ := newTestRefresher(t, store, now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	r.Shutdown(shutdownCtx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop after shutdown")
	}
}
