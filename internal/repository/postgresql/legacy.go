package postgresql

import (
	"context"

	"modgarage/internal/db"
	"modgarage/internal/repository"
)

// LegacyOrderRepo reads the order_history table, where historical order
// records are kept verbatim as JSON payloads. The table is never written by
// this service.
type LegacyOrderRepo struct {
	db db.DB
}

func NewLegacyOrderRepo(db db.DB) *LegacyOrderRepo {
	return &LegacyOrderRepo{db: db}
}

func (r *LegacyOrderRepo) GetAll(ctx context.Context) ([]*repository.LegacyOrder, error) {
	var records []*repository.LegacyOrder
	err := r.db.Select(ctx, &records, "SELECT * FROM order_history ORDER BY id ASC")
	return records, err
}
