package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haatbazaar/marketplace-backend/api/routes"
	"github.com/haatbazaar/marketplace-backend/internal/address"
	"github.com/haatbazaar/marketplace-backend/internal/cart"
	"github.com/haatbazaar/marketplace-backend/internal/catalog"
	"github.com/haatbazaar/marketplace-backend/internal/checkout"
	"github.com/haatbazaar/marketplace-backend/internal/coupons"
	"github.com/haatbazaar/marketplace-backend/internal/invoice"
	"github.com/haatbazaar/marketplace-backend/internal/notifications"
	"github.com/haatbazaar/marketplace-backend/internal/orders"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
	"github.com/haatbazaar/marketplace-backend/pkg/migrate"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/payments"
	"github.com/haatbazaar/marketplace-backend/pkg/redis"
	"github.com/haatbazaar/marketplace-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.ForService("api", cfg.App)

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

	deps, err := buildDependencies(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.DB = dbClient
	deps.Cache = redisClient
	deps.Gatherer = prometheus.DefaultGatherer

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	walletSvc, err := wallet.NewService(wallet.NewRepository(conn), dbClient, cfg.Wallet, settlementMetrics, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	catalogRepo := catalog.NewRepository(conn)
	inventory, err := catalog.NewInventory(catalogRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	cartRepo := cart.NewRepository(conn)
	snapshots, err := cart.NewService(cartRepo, catalogRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	addressSvc, err := address.NewService(address.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}

	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orderRepo, dbClient, outboxSvc, walletSvc, inventory, settlementMetrics, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	invoiceSvc, err := invoice.NewService(orderSvc, catalogRepo, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	notificationSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}

	gateway, err := buildGateway(cfg, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.Dependencies{
		Tx:        dbClient,
		Snapshots: snapshots,
		Carts:     cartRepo,
		Addresses: addressSvc,
		Coupons:   couponSvc,
		Wallet:    walletSvc,
		Inventory: inventory,
		Orders:    orderRepo,
		Outbox:    outboxSvc,
		Gateway:   gateway,
		Delivery:  checkout.NewDeliveryPolicy(cfg.Delivery),
		Metrics:   settlementMetrics,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Checkout:      checkoutSvc,
		Orders:        orderSvc,
		Invoices:      invoiceSvc,
		Wallet:        walletSvc,
		Notifications: notificationSvc,
		Addresses:     addressSvc,
		Gateway:       gateway,
	}, nil
}

// buildGateway returns nil when no Stripe secret is configured, which leaves
// online checkout disabled.
func buildGateway(cfg *config.Config, logg *logger.Logger) (payments.Gateway, error) {
	if strings.TrimSpace(cfg.Stripe.Secret) == "" {
		logg.Warn(context.Background(), "stripe secret not configured, online payments disabled")
		return nil, nil
	}
	client, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		return nil, err
	}
	gateway, err := payments.NewStripeGateway(client, cfg.Stripe.Currency)
	if err != nil {
		return nil, err
	}
	return gateway, nil
}
