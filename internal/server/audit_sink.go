package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaAuditSink ships audit batches to a Kafka topic, keyed by handler so
// entries for the same endpoint land on the same partition.
type KafkaAuditSink struct {
	writer *kafka.Writer
}

func NewKafkaAuditSink(brokers []string, topic string) *KafkaAuditSink {
	return &KafkaAuditSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (s *KafkaAuditSink) WriteBatch(ctx context.Context, entries []AuditLogEntry) error {
	messages := make([]kafka.Message, 0, len(entries))
	for _, entry := range entries {
		value, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(entry.Handler),
			Value: value,
		})
	}
	return s.writer.WriteMessages(ctx, messages...)
}

func (s *KafkaAuditSink) Close() error {
	return s.writer.Close()
}
