package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"modgarage/internal/db"
	"modgarage/internal/repository"
)

type OrderRepo struct {
	db db.DB
}

func NewOrderRepo(db db.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Create(ctx context.Context, order *repository.Order) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO orders (
            id, buyer_name, buyer_email, title, price, address,
            payment_method, status, tracking_stage, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, order.ID, order.BuyerName, order.BuyerEmail, order.Title, order.Price,
		order.Address, order.PaymentMethod, order.Status, order.TrackingStage,
		order.CreatedAt, order.UpdatedAt)
	return err
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*repository.Order, error) {
	var order repository.Order
	err := r.db.Get(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Order, error) {
	var order repository.Order
	err := tx.Get(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) Update(ctx context.Context, order *repository.Order) error {
	_, err := r.db.Exec(ctx, `
        UPDATE orders
        SET
            buyer_name = $1,
            buyer_email = $2,
            title = $3,
            price = $4,
            address = $5,
            payment_method = $6,
            status = $7,
            tracking_stage = $8,
            updated_at = $9
        WHERE id = $10
    `, order.BuyerName, order.BuyerEmail, order.Title, order.Price, order.Address,
		order.PaymentMethod, order.Status, order.TrackingStage, order.UpdatedAt, order.ID)
	return err
}

func (r *OrderRepo) UpdateTx(ctx context.Context, tx db.Tx, order *repository.Order) error {
	_, err := tx.Exec(ctx, `
        UPDATE orders
        SET
            buyer_name = $1,
            buyer_email = $2,
            title = $3,
            price = $4,
            address = $5,
            payment_method = $6,
            status = $7,
            tracking_stage = $8,
            updated_at = $9
        WHERE id = $10
    `, order.BuyerName, order.BuyerEmail, order.Title, order.Price, order.Address,
		order.PaymentMethod, order.Status, order.TrackingStage, order.UpdatedAt, order.ID)
	return err
}

func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM orders WHERE id = $1", id)
	return err
}

func (r *OrderRepo) GetAll(ctx context.Context) ([]*repository.Order, error) {
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, "SELECT * FROM orders ORDER BY created_at ASC")
	return orders, err
}

// ReplaceAllTx swaps the whole order table inside one transaction, so the
// stage refresh pass lands atomically for concurrent readers.
func (r *OrderRepo) ReplaceAllTx(ctx context.Context, tx db.Tx, orders []*repository.Order) error {
	if _, err := tx.Exec(ctx, "DELETE FROM orders"); err != nil {
		return err
	}
	for _, order := range orders {
		_, err := tx.Exec(ctx, `
            INSERT INTO orders (
                id, buyer_name, buyer_email, title, price, address,
                payment_method, status, tracking_stage, created_at, updated_at
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        `, order.ID, order.BuyerName, order.BuyerEmail, order.Title, order.Price,
			order.Address, order.PaymentMethod, order.Status, order.TrackingStage,
			order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}
