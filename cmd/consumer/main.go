package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"modgarage/internal/cache"
	"modgarage/internal/config"
	"modgarage/internal/logger"
	"modgarage/internal/storage"
	"modgarage/internal/syncbus"
)

// Subscriber side of the sync channel: on every notification the named
// collection is re-read from the shared snapshot and the in-memory view
// replaced wholesale.
func main() {
	cfg := config.Load()

	log := logger.New(cfg.Debug)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := storage.NewFileStore(cfg.DataFile, log)
	view := cache.NewView(store, log)
	if err := view.LoadInitial(ctx); err != nil {
		log.Error("initial load failed", zap.Error(err))
		os.Exit(1)
	}

	origin := uuid.NewString()

	var err error
	switch cfg.SyncBackend {
	case "redis":
		sub := syncbus.NewRedisSubscriber(cfg.RedisAddr, cfg.RedisChannel, origin, log)
		err = sub.Run(ctx, view.HandleNotification)
	default:
		sub := syncbus.NewKafkaSubscriber(cfg.KafkaBrokers, cfg.SyncTopic, cfg.SyncGroupID, origin, log)
		err = sub.Run(ctx, view.HandleNotification)
	}
	if err != nil && ctx.Err() == nil {
		log.Error("subscriber stopped", zap.Error(err))
		os.Exit(1)
	}

	log.Info("consumer stopped")
}
