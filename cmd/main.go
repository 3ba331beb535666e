package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"modgarage/internal/config"
	"modgarage/internal/db"
	"modgarage/internal/legacy"
	"modgarage/internal/logger"
	"modgarage/internal/repository/postgresql"
	"modgarage/internal/scheduler"
	"modgarage/internal/server"
	"modgarage/internal/storage"
	"modgarage/internal/syncbus"
)

// appStore is everything the process needs from a store backend. Both the
// file snapshot store and the postgres store satisfy it.
type appStore interface {
	server.Storage
	ReplaceOrders(ctx context.Context, orders []storage.Order) error
	LegacyOrders(ctx context.Context) ([]map[string]any, error)
	EnsureSeed(ctx context.Context, adminUser, adminPassword string) error
}

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Debug)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init failed", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	// Bootstrap is bounded: a wedged backend must not keep the process
	// from serving. Seed and migration failures are logged and skipped.
	bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, cfg.BootstrapTimeout)
	if err := store.EnsureSeed(bootstrapCtx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		log.Warn("seed skipped", zap.Error(err))
	}
	if err := legacy.NewMigrator(store, log).Run(bootstrapCtx); err != nil {
		log.Warn("legacy migration skipped", zap.Error(err))
	}
	bootstrapCancel()

	origin := uuid.NewString()
	bus := buildBus(cfg, origin, log)
	defer bus.Close()

	var sink server.AuditSink
	if cfg.SyncBackend == "kafka" {
		kafkaSink := server.NewKafkaAuditSink(cfg.KafkaBrokers, cfg.AuditTopic)
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	srv := server.New(store, bus, sink, log)
	refresher := scheduler.NewRefresher(store, bus, cfg.RefreshInterval, log)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Run(groupCtx, cfg.HTTPPort)
	})
	group.Go(func() error {
		refresher.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
		refresher.Shutdown(shutdownCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("stopped")
}

func buildStore(ctx context.Context, cfg config.Config, log *zap.Logger) (appStore, func(), error) {
	if cfg.Backend == "postgres" {
		pool, err := db.NewDb(ctx, config.DSN())
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(
			pool,
			postgresql.NewOrderRepo(pool),
			postgresql.NewUserRepo(pool),
			postgresql.NewMessageRepo(pool),
			postgresql.NewReviewRepo(pool),
			postgresql.NewLegacyOrderRepo(pool),
			log,
		)
		return store, pool.Close, nil
	}

	return storage.NewFileStore(cfg.DataFile, log), func() {}, nil
}

func buildBus(cfg config.Config, origin string, log *zap.Logger) syncbus.Bus {
	switch cfg.SyncBackend {
	case "kafka":
		return syncbus.NewKafkaBus(cfg.KafkaBrokers, cfg.SyncTopic, origin, log)
	case "redis":
		return syncbus.NewRedisBus(cfg.RedisAddr, cfg.RedisChannel, origin, log)
	default:
		return syncbus.NewConsoleBus(log)
	}
}
