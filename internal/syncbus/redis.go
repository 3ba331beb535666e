package syncbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"modgarage/internal/metrics"
)

// RedisBus publishes sync notifications over a Redis pub/sub channel. Unlike
// Kafka there is no replay: a client that was offline simply re-reads the
// snapshot when it next starts, which the whole-snapshot model makes safe.
type RedisBus struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

func NewRedisBus(addr, channel, origin string, logger *zap.Logger) *RedisBus {
	return &RedisBus{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		origin:  origin,
		logger:  logger,
	}
}

func (b *RedisBus) Publish(ctx context.Context, collection string) error {
	n := Notification{Collection: collection, At: time.Now().UTC(), Origin: b.origin}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("sync_publish").Inc()
		return err
	}

	metrics.SyncPublishesTotal.WithLabelValues(collection).Inc()
	return nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

// RedisSubscriber consumes sync notifications from the pub/sub channel.
type RedisSubscriber struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

func NewRedisSubscriber(addr, channel, origin string, logger *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		origin:  origin,
		logger:  logger,
	}
}

func (s *RedisSubscriber) Run(ctx context.Context, handler Handler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()
	defer s.client.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var n Notification
			if err := json.Unmarshal([]byte(m.Payload), &n); err != nil {
				s.logger.Warn("malformed sync notification", zap.String("payload", m.Payload))
				continue
			}
			if s.origin != "" && n.Origin == s.origin {
				continue
			}
			handler(ctx, n)
		}
	}
}
