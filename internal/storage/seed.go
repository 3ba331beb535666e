package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// defaultReviews is the built-in dataset the storefront falls back to when
// nothing has been persisted yet (or the catalog bootstrap fails).
func defaultReviews(now time.Time) []Review {
	return []Review{
		{
			ID:        uuid.NewString(),
			Name:      "Daniel O.",
			Vehicle:   "BMW M4",
			Rating:    5,
			Comment:   "Full satin wrap came out flawless, panel gaps included.",
			Status:    ReviewApproved,
			CreatedAt: now,
		},
		{
			ID:        uuid.NewString(),
			Name:      "Priya S.",
			Vehicle:   "Tesla Model 3",
			Rating:    5,
			Comment:   "Ceramic tint plus PPF on the front end. Booking was painless.",
			Status:    ReviewApproved,
			CreatedAt: now,
		},
		{
			ID:        uuid.NewString(),
			Name:      "Marcus T.",
			Vehicle:   "Ford Ranger",
			Rating:    4,
			Comment:   "Bed liner and decals done in a day.",
			Status:    ReviewApproved,
			CreatedAt: now,
		},
	}
}

// EnsureSeed initializes any collection that has never been written. It runs
// once at startup; a collection that exists but is empty is left alone, so
// deliberately emptied data is never re-seeded.
func (fs *FileStore) EnsureSeed(ctx context.Context, adminUser, adminPassword string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	now := fs.timeNow()
	seeded := false

	if _, ok := data[CollectionUsers]; !ok {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := User{
			ID:           uuid.NewString(),
			Name:         adminUser,
			Email:        adminUser + "@modgarage.local",
			PasswordHash: string(hash),
			Admin:        true,
			CreatedAt:    now,
		}
		if err := encodeCollection(data, CollectionUsers, []User{admin}); err != nil {
			return err
		}
		seeded = true
	}

	if _, ok := data[CollectionReviews]; !ok {
		if err := encodeCollection(data, CollectionReviews, defaultReviews(now)); err != nil {
			return err
		}
		seeded = true
	}

	if _, ok := data[CollectionOrders]; !ok {
		if err := encodeCollection(data, CollectionOrders, []Order{}); err != nil {
			return err
		}
		seeded = true
	}

	if _, ok := data[CollectionMessages]; !ok {
		if err := encodeCollection(data, CollectionMessages, []Message{}); err != nil {
			return err
		}
		seeded = true
	}

	if !seeded {
		return nil
	}

	fs.logger.Info("seeded first-run collections", zap.String("path", fs.path))
	return fs.save(data)
}

// SeedLegacyOrders writes raw records under the legacy collection key. Test
// and bootstrap helper; the migration pass itself never writes legacy data.
func (fs *FileStore) SeedLegacyOrders(ctx context.Context, records []map[string]any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	data[CollectionOrderHistory] = raw
	return fs.save(data)
}
