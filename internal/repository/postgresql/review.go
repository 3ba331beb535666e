package postgresql

import (
	"context"

	"modgarage/internal/db"
	"modgarage/internal/repository"
)

type ReviewRepo struct {
	db db.DB
}

func NewReviewRepo(db db.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

func (r *ReviewRepo) Create(ctx context.Context, review *repository.Review) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO reviews (id, name, vehicle, rating, comment, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, review.ID, review.Name, review.Vehicle, review.Rating, review.Comment,
		review.Status, review.CreatedAt)
	return err
}

func (r *ReviewRepo) GetAll(ctx context.Context) ([]*repository.Review, error) {
	var reviews []*repository.Review
	err := r.db.Select(ctx, &reviews, "SELECT * FROM reviews ORDER BY created_at ASC")
	return reviews, err
}

func (r *ReviewRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM reviews WHERE id = $1", id)
	return err
}

func (r *ReviewRepo) SetStatus(ctx context.Context, id, status string) (bool, error) {
	tag, err := r.db.Exec(ctx, "UPDATE reviews SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
