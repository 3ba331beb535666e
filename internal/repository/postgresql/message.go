package postgresql

import (
	"context"

	"modgarage/internal/db"
	"modgarage/internal/repository"
)

type MessageRepo struct {
	db db.DB
}

func NewMessageRepo(db db.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *repository.Message) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO messages (id, name, email, subject, body, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, msg.ID, msg.Name, msg.Email, msg.Subject, msg.Body, msg.CreatedAt)
	return err
}

func (r *MessageRepo) GetAll(ctx context.Context) ([]*repository.Message, error) {
	var msgs []*repository.Message
	err := r.db.Select(ctx, &msgs, "SELECT * FROM messages ORDER BY created_at ASC")
	return msgs, err
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM messages WHERE id = $1", id)
	return err
}
