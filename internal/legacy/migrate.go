package legacy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"modgarage/internal/storage"
)

// Store is the slice of the order store the migration pass needs.
type Store interface {
	ListOrders(ctx context.Context) ([]storage.Order, error)
	ReplaceOrders(ctx context.Context, orders []storage.Order) error
	LegacyOrders(ctx context.Context) ([]map[string]any, error)
}

// Migrator performs the one-time repair of legacy order records into the
// canonical collection. It must run before the stage refresh scheduler is
// first armed.
type Migrator struct {
	store  Store
	norm   *Normalizer
	logger *zap.Logger
}

func NewMigrator(store Store, logger *zap.Logger) *Migrator {
	return &Migrator{
		store:  store,
		norm:   NewNormalizer(),
		logger: logger,
	}
}

// Run migrates the legacy collection into the canonical one. The pass only
// executes when the canonical collection is empty and the legacy one is not;
// a non-empty canonical collection means migration already happened (or real
// orders exist), and writing stale legacy data over it would lose state.
func (m *Migrator) Run(ctx context.Context) error {
	canonical, err := m.store.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to read canonical orders: %w", err)
	}
	if len(canonical) > 0 {
		m.logger.Debug("canonical orders present, skipping legacy migration",
			zap.Int("orders", len(canonical)))
		return nil
	}

	legacy, err := m.store.LegacyOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to read legacy orders: %w", err)
	}
	if len(legacy) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(legacy))
	orders := make([]storage.Order, 0, len(legacy))
	for _, raw := range legacy {
		order := m.norm.Normalize(raw)
		if _, dup := seen[order.ID]; dup {
			// Legacy dumps occasionally repeat ids; keep both records
			// but restore id uniqueness.
			order.ID = uuid.NewString()
		}
		seen[order.ID] = struct{}{}
		orders = append(orders, order)
	}

	if err := m.store.ReplaceOrders(ctx, orders); err != nil {
		return fmt.Errorf("failed to write migrated orders: %w", err)
	}

	m.logger.Info("migrated legacy orders", zap.Int("count", len(orders)))
	return nil
}
