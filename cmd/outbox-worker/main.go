package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haatbazaar/marketplace-backend/internal/catalog"
	"github.com/haatbazaar/marketplace-backend/internal/consumers/settlement"
	"github.com/haatbazaar/marketplace-backend/internal/emails"
	"github.com/haatbazaar/marketplace-backend/internal/notifications"
	"github.com/haatbazaar/marketplace-backend/internal/orders"
	"github.com/haatbazaar/marketplace-backend/internal/users"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/mailer"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
	"github.com/haatbazaar/marketplace-backend/pkg/migrate"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/idempotency"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/registry"
	"github.com/haatbazaar/marketplace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-worker"})

	listDLQ := flag.Bool("dlq", false, "print dead-lettered events and exit")
	dlqReason := flag.String("dlq-reason", "", "only list dead letters with this reason")
	requeue := flag.String("requeue", "", "hand a dead-lettered outbox event id back to the publisher and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-worker"

	logg = logger.ForService("outbox-worker", cfg.App)

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

	if *listDLQ || *requeue != "" {
		if err := runDLQCommand(context.Background(), logg, outbox.NewDLQRepository(dbClient.DB()), *listDLQ, *dlqReason, *requeue); err != nil {
			logg.Error(context.Background(), "dlq command failed", err)
			os.Exit(1)
		}
		return
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

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	outboxMetrics := metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	walletSvc, err := wallet.NewService(wallet.NewRepository(dbClient.DB()), dbClient, cfg.Wallet, settlementMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	inventory, err := catalog.NewInventory(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory", err)
		os.Exit(1)
	}
	orderRepo := orders.NewRepository(dbClient.DB())
	orderSvc, err := orders.NewService(orderRepo, dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg), walletSvc, inventory, settlementMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	notificationSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	emailSvc, err := buildEmailService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create email service", err)
		os.Exit(1)
	}

	consumer, err := settlement.NewConsumer(settlement.Params{
		Orders:   orderRepo,
		Debits:   orderSvc,
		Wallet:   walletSvc,
		Notifier: notifications.NewNotifier(notificationSvc, logg),
		Emails:   emailSvc,
		Guard:    guard,
		Metrics:  settlementMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      registry.NewEventRegistry(),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Handlers:      []Handler{consumer},
		Metrics:       outboxMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting outbox worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox worker shutting down gracefully")
}

func runDLQCommand(ctx context.Context, logg *logger.Logger, dlq *outbox.DLQRepository, list bool, reason, requeue string) error {
	if requeue != "" {
		id, err := uuid.Parse(requeue)
		if err != nil {
			return fmt.Errorf("requeue id %q: %w", requeue, err)
		}
		if err := dlq.Requeue(ctx, id); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "outbox_id", id.String()), "dead letter requeued")
		if !list {
			return nil
		}
	}

	filter := enums.OutboxDLQErrorReason("")
	if reason != "" {
		parsed, err := enums.ParseOutboxDLQErrorReason(reason)
		if err != nil {
			return err
		}
		filter = parsed
	}
	rows, err := dlq.List(ctx, filter, 0)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OUTBOX ID\tEVENT\tAGGREGATE\tREASON\tATTEMPTS\tFAILED AT")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%d\t%s\n",
			row.EventID, row.EventType, row.AggregateType, row.AggregateID,
			row.ErrorReason, row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func buildEmailService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (emails.Service, error) {
	renderer, err := emails.NewRenderer()
	if err != nil {
		return nil, err
	}
	sender, err := mailer.New(cfg.SMTP, logg)
	if err != nil {
		return nil, err
	}
	directory, err := users.NewDirectory(users.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	return emails.NewService(renderer, sender, directory, logg)
}
