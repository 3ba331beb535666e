//go:generate mockgen -source ./bus.go -destination=./mocks/bus.go -package=mock_syncbus
package syncbus

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"modgarage/internal/metrics"
)

// Notification tells other clients that a collection changed. Only the
// collection name travels; subscribers re-read the whole persisted snapshot
// and replace their in-memory view, which removes any need for delta merging.
type Notification struct {
	Collection string    `json:"collection"`
	At         time.Time `json:"at"`
	Origin     string    `json:"origin,omitempty"`
}

// Bus publishes store mutations to every other open client.
type Bus interface {
	Publish(ctx context.Context, collection string) error
	Close() error
}

// Handler consumes one notification.
type Handler func(ctx context.Context, n Notification)

// ConsoleBus is the standalone fallback: notifications are logged and go
// nowhere. Useful for single-process runs and tests.
type ConsoleBus struct {
	logger *zap.Logger
}

func NewConsoleBus(logger *zap.Logger) *ConsoleBus {
	return &ConsoleBus{logger: logger}
}

func (b *ConsoleBus) Publish(ctx context.Context, collection string) error {
	n := Notification{Collection: collection, At: time.Now().UTC()}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	b.logger.Debug("sync notification (console)", zap.ByteString("payload", payload))
	metrics.SyncPublishesTotal.WithLabelValues(collection).Inc()
	return nil
}

func (b *ConsoleBus) Close() error { return nil }
