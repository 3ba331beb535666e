package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"modgarage/internal/db"
	"modgarage/internal/repository"
	"modgarage/internal/tracking"
)

type OrderRepository interface {
	Create(ctx context.Context, order *repository.Order) error
	GetByID(ctx context.Context, id string) (*repository.Order, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Order, error)
	Update(ctx context.Context, order *repository.Order) error
	UpdateTx(ctx context.Context, tx db.Tx, order *repository.Order) error
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]*repository.Order, error)
	ReplaceAllTx(ctx context.Context, tx db.Tx, orders []*repository.Order) error
}

type UserRepository interface {
	Create(ctx context.Context, user *repository.User, password string) error
	GetByName(ctx context.Context, name string) (*repository.User, error)
	GetAll(ctx context.Context) ([]*repository.User, error)
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *repository.Message) error
	GetAll(ctx context.Context) ([]*repository.Message, error)
	Delete(ctx context.Context, id string) error
}

type ReviewRepository interface {
	Create(ctx context.Context, review *repository.Review) error
	GetAll(ctx context.Context) ([]*repository.Review, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) (bool, error)
}

type LegacyOrderRepository interface {
	GetAll(ctx context.Context) ([]*repository.LegacyOrder, error)
}

// PostgresStore adapts the row repositories to the same surface as the
// snapshot file store. Alias totality is trivial here: one table is the only
// place a collection lives.
type PostgresStore struct {
	db          db.DB
	orderRepo   OrderRepository
	userRepo    UserRepository
	messageRepo MessageRepository
	reviewRepo  ReviewRepository
	legacyRepo  LegacyOrderRepository
	logger      *zap.Logger

	timeNow func() time.Time
}

func NewPostgresStore(
	db db.DB,
	orderRepo OrderRepository,
	userRepo UserRepository,
	messageRepo MessageRepository,
	reviewRepo ReviewRepository,
	legacyRepo LegacyOrderRepository,
	logger *zap.Logger,
) *PostgresStore {
	return &PostgresStore{
		db:          db,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		reviewRepo:  reviewRepo,
		legacyRepo:  legacyRepo,
		logger:      logger,
		timeNow:     func() time.Time { return time.Now().UTC() },
	}
}

func toRepoOrder(o Order) *repository.Order {
	return &repository.Order{
		ID:            o.ID,
		BuyerName:     o.BuyerName,
		BuyerEmail:    o.BuyerEmail,
		Title:         o.Title,
		Price:         o.Price,
		Address:       o.Address,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		TrackingStage: string(o.TrackingStage),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func fromRepoOrder(o *repository.Order) Order {
	return Order{
		ID:            o.ID,
		BuyerName:     o.BuyerName,
		BuyerEmail:    o.BuyerEmail,
		Title:         o.Title,
		Price:         o.Price,
		Address:       o.Address,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		TrackingStage: tracking.Stage(o.TrackingStage),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]Order, error) {
	repoOrders, err := s.orderRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]Order, len(repoOrders))
	for i, o := range repoOrders {
		orders[i] = fromRepoOrder(o)
	}
	return orders, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	repoOrder, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order := fromRepoOrder(repoOrder)
	return &order, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order Order) error {
	if _, err := s.orderRepo.GetByID(ctx, order.ID); err == nil {
		return ErrOrderExists
	}
	if err := s.orderRepo.Create(ctx, toRepoOrder(order)); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceOrders(ctx context.Context, orders []Order) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	repoOrders := make([]*repository.Order, len(orders))
	for i := range orders {
		repoOrders[i] = toRepoOrder(orders[i])
	}
	if err := s.orderRepo.ReplaceAllTx(ctx, tx, repoOrders); err != nil {
		return fmt.Errorf("failed to replace orders: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CancelOrder(ctx context.Context, id string) (*Order, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	repoOrder, err := s.orderRepo.GetByIDTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if repoOrder.Status == StatusCancelled {
		order := fromRepoOrder(repoOrder)
		return &order, nil
	}

	repoOrder.Status = StatusCancelled
	repoOrder.UpdatedAt = s.timeNow()
	if err := s.orderRepo.UpdateTx(ctx, tx, repoOrder); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	order := fromRepoOrder(repoOrder)
	return &order, nil
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	repoUsers, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]User, len(repoUsers))
	for i, u := range repoUsers {
		users[i] = User{
			ID:           u.ID,
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: u.PasswordHash,
			Admin:        u.Admin,
			CreatedAt:    u.CreatedAt,
		}
	}
	return users, nil
}

func (s *PostgresStore) GetUserByName(ctx context.Context, name string) (*User, error) {
	repoUser, err := s.userRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &User{
		ID:           repoUser.ID,
		Name:         repoUser.Name,
		Email:        repoUser.Email,
		PasswordHash: repoUser.PasswordHash,
		Admin:        repoUser.Admin,
		CreatedAt:    repoUser.CreatedAt,
	}, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context) ([]Message, error) {
	repoMsgs, err := s.messageRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	msgs := make([]Message, len(repoMsgs))
	for i, m := range repoMsgs {
		msgs[i] = Message{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			Subject:   m.Subject,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		}
	}
	return msgs, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg Message) error {
	err := s.messageRepo.Create(ctx, &repository.Message{
		ID:        msg.ID,
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	if err := s.messageRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListReviews(ctx context.Context) ([]Review, error) {
	repoReviews, err := s.reviewRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	reviews := make([]Review, len(repoReviews))
	for i, r := range repoReviews {
		reviews[i] = Review{
			ID:        r.ID,
			Name:      r.Name,
			Vehicle:   r.Vehicle,
			Rating:    r.Rating,
			Comment:   r.Comment,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		}
	}
	return reviews, nil
}

func (s *PostgresStore) CreateReview(ctx context.Context, review Review) error {
	err := s.reviewRepo.Create(ctx, &repository.Review{
		ID:        review.ID,
		Name:      review.Name,
		Vehicle:   review.Vehicle,
		Rating:    review.Rating,
		Comment:   review.Comment,
		Status:    review.Status,
		CreatedAt: review.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteReview(ctx context.Context, id string) error {
	if err := s.reviewRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetReviewStatus(ctx context.Context, id, status string) error {
	if status != ReviewPending && status != ReviewApproved {
		return ErrInvalidStatus
	}
	updated, err := s.reviewRepo.SetStatus(ctx, id, status)
	if err != nil {
		return fmt.Errorf("failed to set review status: %w", err)
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LegacyOrders(ctx context.Context) ([]map[string]any, error) {
	records, err := s.legacyRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy orders: %w", err)
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		raw := map[string]any{}
		if err := json.Unmarshal(rec.Payload, &raw); err != nil {
			// Fail-open: an unparsable historical payload becomes an
			// empty record and normalizes to safe defaults.
			s.logger.Warn("unparsable legacy order payload",
				zap.Int64("row_id", rec.ID), zap.Error(err))
			raw = map[string]any{}
		}
		out = append(out, raw)
	}
	return out, nil
}

// EnsureSeed creates the admin user when the users table is empty.
func (s *PostgresStore) EnsureSeed(ctx context.Context, adminUser, adminPassword string) error {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to check users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	user := &repository.User{
		ID:        uuid.NewString(),
		Name:      adminUser,
		Email:     adminUser + "@modgarage.local",
		Admin:     true,
		CreatedAt: s.timeNow(),
	}
	if err := s.userRepo.Create(ctx, user, adminPassword); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	s.logger.Info("seeded admin user", zap.String("name", adminUser))
	return nil
}
