package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrOrderExists   = errors.New("order already exists")
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid status")
)

// FileStore persists every collection as a whole-snapshot JSON document
// keyed by collection name. Each mutation is a full read-modify-write of the
// affected collection followed by one atomic file replace, so a concurrent
// reader never observes a partially-updated collection.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger

	timeNow func() time.Time
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:    path,
		logger:  logger,
		timeNow: func() time.Time { return time.Now().UTC() },
	}
}

// load reads the snapshot document. A missing file yields an empty document;
// an unparsable one is logged and replaced with an empty document rather
// than propagated (fail-open).
func (fs *FileStore) load() map[string]json.RawMessage {
	data := make(map[string]json.RawMessage)

	raw, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Warn("failed to read snapshot file, starting empty",
				zap.String("path", fs.path), zap.Error(err))
		}
		return data
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		fs.logger.Warn("corrupt snapshot file, starting empty",
			zap.String("path", fs.path), zap.Error(err))
		return make(map[string]json.RawMessage)
	}
	return data
}

// save writes the whole document to a temp file and renames it over the
// snapshot, so readers see either the old state or the new one.
func (fs *FileStore) save(data map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fs.path)
}

// decodeCollection reads one collection out of the document, checking every
// alias key. A corrupt collection payload is treated as empty.
func decodeCollection[T any](fs *FileStore, data map[string]json.RawMessage, collection string) []T {
	for _, key := range Aliases(collection) {
		raw, ok := data[key]
		if !ok {
			continue
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			fs.logger.Warn("corrupt collection payload, treating as empty",
				zap.String("collection", key), zap.Error(err))
			return nil
		}
		return items
	}
	return nil
}

// encodeCollection writes one collection into the document under every alias
// key, keeping the duplicated copies identical.
func encodeCollection[T any](data map[string]json.RawMessage, collection string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	for _, key := range Aliases(collection) {
		data[key] = raw
	}
	return nil
}

// --- orders ---

func (fs *FileStore) ListOrders(ctx context.Context) ([]Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return decodeCollection[Order](fs, fs.load(), CollectionOrders), nil
}

func (fs *FileStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, o := range decodeCollection[Order](fs, fs.load(), CollectionOrders) {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) CreateOrder(ctx context.Context, order Order) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	orders := decodeCollection[Order](fs, data, CollectionOrders)
	for _, o := range orders {
		if o.ID == order.ID {
			return ErrOrderExists
		}
	}

	orders = append(orders, order)
	if err := encodeCollection(data, CollectionOrders, orders); err != nil {
		return err
	}
	return fs.save(data)
}

// ReplaceOrders swaps the entire order collection in one write. The stage
// refresh pass uses this so all recomputed stages land atomically.
func (fs *FileStore) ReplaceOrders(ctx context.Context, orders []Order) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	if err := encodeCollection(data, CollectionOrders, orders); err != nil {
		return err
	}
	return fs.save(data)
}

// CancelOrder marks an order cancelled, freezing its tracking stage at the
// last computed value. A missing or already-cancelled order is a no-op, not
// an error.
func (fs *FileStore) CancelOrder(ctx context.Context, id string) (*Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	orders := decodeCollection[Order](fs, data, CollectionOrders)
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		if orders[i].Status == StatusCancelled {
			o := orders[i]
			return &o, nil
		}
		orders[i].Status = StatusCancelled
		orders[i].UpdatedAt = fs.timeNow()
		if err := encodeCollection(data, CollectionOrders, orders); err != nil {
			return nil, err
		}
		if err := fs.save(data); err != nil {
			return nil, err
		}
		o := orders[i]
		return &o, nil
	}
	return nil, nil
}

// DeleteOrder removes the order from every alias key the collection is kept
// under. A missing id is a no-op.
func (fs *FileStore) DeleteOrder(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	orders := decodeCollection[Order](fs, data, CollectionOrders)
	kept := orders[:0]
	for _, o := range orders {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	if len(kept) == len(orders) {
		return nil
	}
	if err := encodeCollection(data, CollectionOrders, kept); err != nil {
		return err
	}
	return fs.save(data)
}

// --- users ---

func (fs *FileStore) ListUsers(ctx context.Context) ([]User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return decodeCollection[User](fs, fs.load(), CollectionUsers), nil
}

func (fs *FileStore) CreateUser(ctx context.Context, user User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	users := decodeCollection[User](fs, data, CollectionUsers)
	users = append(users, user)
	if err := encodeCollection(data, CollectionUsers, users); err != nil {
		return err
	}
	return fs.save(data)
}

func (fs *FileStore) GetUserByName(ctx context.Context, name string) (*User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, u := range decodeCollection[User](fs, fs.load(), CollectionUsers) {
		if strings.EqualFold(u.Name, name) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) DeleteUser(ctx context.Context, id string) error {
	return deleteByID[User](fs, CollectionUsers, id, func(u User) string { return u.ID })
}

// --- messages ---

func (fs *FileStore) ListMessages(ctx context.Context) ([]Message, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return decodeCollection[Message](fs, fs.load(), CollectionMessages), nil
}

func (fs *FileStore) CreateMessage(ctx context.Context, msg Message) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	msgs := decodeCollection[Message](fs, data, CollectionMessages)
	msgs = append(msgs, msg)
	if err := encodeCollection(data, CollectionMessages, msgs); err != nil {
		return err
	}
	return fs.save(data)
}

func (fs *FileStore) DeleteMessage(ctx context.Context, id string) error {
	return deleteByID[Message](fs, CollectionMessages, id, func(m Message) string { return m.ID })
}

// --- reviews ---

func (fs *FileStore) ListReviews(ctx context.Context) ([]Review, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return decodeCollection[Review](fs, fs.load(), CollectionReviews), nil
}

func (fs *FileStore) CreateReview(ctx context.Context, review Review) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	reviews := decodeCollection[Review](fs, data, CollectionReviews)
	reviews = append(reviews, review)
	if err := encodeCollection(data, CollectionReviews, reviews); err != nil {
		return err
	}
	return fs.save(data)
}

func (fs *FileStore) DeleteReview(ctx context.Context, id string) error {
	return deleteByID[Review](fs, CollectionReviews, id, func(r Review) string { return r.ID })
}

func (fs *FileStore) SetReviewStatus(ctx context.Context, id, status string) error {
	if status != ReviewPending && status != ReviewApproved {
		return ErrInvalidStatus
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	reviews := decodeCollection[Review](fs, data, CollectionReviews)
	for i := range reviews {
		if reviews[i].ID == id {
			reviews[i].Status = status
			if err := encodeCollection(data, CollectionReviews, reviews); err != nil {
				return err
			}
			return fs.save(data)
		}
	}
	return ErrNotFound
}

// --- legacy source ---

// LegacyOrders returns the raw legacy order records. The collection is read
// by the one-time migration pass and is never written back.
func (fs *FileStore) LegacyOrders(ctx context.Context) ([]map[string]any, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return decodeCollection[map[string]any](fs, fs.load(), CollectionOrderHistory), nil
}

func deleteByID[T any](fs *FileStore, collection, id string, key func(T) string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.load()
	items := decodeCollection[T](fs, data, collection)
	kept := items[:0]
	for _, it := range items {
		if key(it) != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	if err := encodeCollection(data, collection, kept); err != nil {
		return err
	}
	return fs.save(data)
}
