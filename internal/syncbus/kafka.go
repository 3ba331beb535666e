package syncbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"modgarage/internal/metrics"
)

// KafkaBus publishes sync notifications to a Kafka topic, keyed by
// collection name so all notifications for one collection stay ordered
// within a partition.
type KafkaBus struct {
	writer *kafka.Writer
	origin string
	logger *zap.Logger
}

func NewKafkaBus(brokers []string, topic, origin string, logger *zap.Logger) *KafkaBus {
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		origin: origin,
		logger: logger,
	}
}

func (b *KafkaBus) Publish(ctx context.Context, collection string) error {
	n := Notification{Collection: collection, At: time.Now().UTC(), Origin: b.origin}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(collection),
		Value: payload,
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("sync_publish").Inc()
		return err
	}

	metrics.SyncPublishesTotal.WithLabelValues(collection).Inc()
	return nil
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}

// KafkaSubscriber consumes sync notifications and hands them to a handler.
type KafkaSubscriber struct {
	reader *kafka.Reader
	origin string
	logger *zap.Logger
}

func NewKafkaSubscriber(brokers []string, topic, groupID, origin string, logger *zap.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			MaxWait:        3 * time.Second,
		}),
		origin: origin,
		logger: logger,
	}
}

// Run reads until the context is cancelled. Notifications originating from
// this client are skipped; the local view is already current.
func (s *KafkaSubscriber) Run(ctx context.Context, handler Handler) error {
	defer func() {
		if err := s.reader.Close(); err != nil {
			s.logger.Warn("failed to close sync reader", zap.Error(err))
		}
	}()

	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("failed to read sync notification", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		var n Notification
		if err := json.Unmarshal(m.Value, &n); err != nil {
			s.logger.Warn("malformed sync notification", zap.ByteString("payload", m.Value))
			continue
		}
		if s.origin != "" && n.Origin == s.origin {
			continue
		}
		handler(ctx, n)
	}
}
