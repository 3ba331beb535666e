package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"modgarage/internal/metrics"
	"modgarage/internal/storage"
	"modgarage/internal/syncbus"
)

// Store is the read surface the view mirrors.
type Store interface {
	ListOrders(ctx context.Context) ([]storage.Order, error)
	ListUsers(ctx context.Context) ([]storage.User, error)
	ListMessages(ctx context.Context) ([]storage.Message, error)
	ListReviews(ctx context.Context) ([]storage.Review, error)
}

// View is an in-memory mirror of the persisted collections. On every sync
// notification it re-reads the named collection in full and swaps its copy;
// there is no per-item merging.
type View struct {
	store  Store
	logger *zap.Logger

	mu       sync.RWMutex
	orders   []storage.Order
	users    []storage.User
	messages []storage.Message
	reviews  []storage.Review
}

func NewView(store Store, logger *zap.Logger) *View {
	return &View{store: store, logger: logger}
}

// LoadInitial fills the view with every collection. Called once at startup.
func (v *View) LoadInitial(ctx context.Context) error {
	for _, c := range []string{
		storage.CollectionOrders,
		storage.CollectionUsers,
		storage.CollectionMessages,
		storage.CollectionReviews,
	} {
		if err := v.Refresh(ctx, c); err != nil {
			return fmt.Errorf("failed to load %s view: %w", c, err)
		}
	}
	return nil
}

// Refresh replaces the named collection's in-memory copy with the persisted
// snapshot.
func (v *View) Refresh(ctx context.Context, collection string) error {
	var count int

	switch collection {
	case storage.CollectionOrders:
		orders, err := v.store.ListOrders(ctx)
		if err != nil {
			return err
		}
		v.mu.Lock()
		v.orders = orders
		v.mu.Unlock()
		count = len(orders)
	case storage.CollectionUsers:
		users, err := v.store.ListUsers(ctx)
		if err != nil {
			return err
		}
		v.mu.Lock()
		v.users = users
		v.mu.Unlock()
		count = len(users)
	case storage.CollectionMessages:
		messages, err := v.store.ListMessages(ctx)
		if err != nil {
			return err
		}
		v.mu.Lock()
		v.messages = messages
		v.mu.Unlock()
		count = len(messages)
	case storage.CollectionReviews:
		reviews, err := v.store.ListReviews(ctx)
		if err != nil {
			return err
		}
		v.mu.Lock()
		v.reviews = reviews
		v.mu.Unlock()
		count = len(reviews)
	default:
		v.logger.Debug("ignoring notification for unknown collection",
			zap.String("collection", collection))
		return nil
	}

	metrics.CollectionViewItems.WithLabelValues(collection).Set(float64(count))
	return nil
}

// HandleNotification is the syncbus.Handler wired into a subscriber.
func (v *View) HandleNotification(ctx context.Context, n syncbus.Notification) {
	if err := v.Refresh(ctx, n.Collection); err != nil {
		v.logger.Warn("failed to refresh collection view",
			zap.String("collection", n.Collection), zap.Error(err))
		return
	}
	v.logger.Info("collection view refreshed", zap.String("collection", n.Collection))
}

func (v *View) Orders() []storage.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]storage.Order, len(v.orders))
	copy(out, v.orders)
	return out
}

func (v *View) Users() []storage.User {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]storage.User, len(v.users))
	copy(out, v.users)
	return out
}

func (v *View) Messages() []storage.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]storage.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

func (v *View) Reviews() []storage.Review {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]storage.Review, len(v.reviews))
	copy(out, v.reviews)
	return out
}
