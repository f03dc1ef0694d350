package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haatbazaar/marketplace-backend/internal/cron"
	"github.com/haatbazaar/marketplace-backend/internal/notifications"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
	"github.com/haatbazaar/marketplace-backend/pkg/migrate"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/redis"
)

const lockKeyFormat = "cron:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	runJob := flag.String("run", "", "run one job now and exit (outbox-retention, wallet-reconcile, notification-cleanup)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.ForService("cron-worker", cfg.App)

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	env := cfg.App.Env
	locker, err := cron.NewRedisLocker(redisClient, func(job string) string {
		return redisClient.LockKey(lockKey(env, job))
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locker", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metricsCollector,
		Tick:     cfg.Cron.Tick,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if *runJob != "" {
		if err := service.RunOnce(logg.WithField(ctx, "mode", "once"), *runJob); err != nil {
			logg.Error(ctx, "cron job run failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env, job string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, job)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, err
	}

	reconciler, err := wallet.NewReconciler(wallet.NewRepository(dbClient.DB()), cfg.Cron.ReconcileBatchSize)
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger:     logg,
		Reconciler: reconciler,
	})
	if err != nil {
		return nil, err
	}

	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, entry := range []struct {
		job   cron.Job
		every time.Duration
	}{
		{retention, cfg.Cron.OutboxRetentionEvery},
		{reconcile, cfg.Cron.ReconcileEvery},
		{cleanup, cfg.Cron.NotificationCleanupEvery},
	} {
		if err := registry.Register(entry.job, entry.every); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
