package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haatbazaar/marketplace-backend/api/controllers"
	"github.com/haatbazaar/marketplace-backend/api/middleware"
	"github.com/haatbazaar/marketplace-backend/internal/address"
	"github.com/haatbazaar/marketplace-backend/internal/checkout"
	"github.com/haatbazaar/marketplace-backend/internal/invoice"
	"github.com/haatbazaar/marketplace-backend/internal/notifications"
	"github.com/haatbazaar/marketplace-backend/internal/orders"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/payments"
	"github.com/haatbazaar/marketplace-backend/pkg/redis"
)

// Cache is the Redis surface the HTTP layer needs for idempotency and throttling.
type Cache interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope, id string) string
	Ping(ctx context.Context) error
}

// Dependencies are the services the router exposes over HTTP. Gateway may be
// nil when online payments are disabled.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Cache         Cache
	Gatherer      prometheus.Gatherer
	Checkout      checkout.Service
	Orders        orders.Service
	Invoices      invoice.Service
	Wallet        wallet.Service
	Notifications notifications.Service
	Addresses     address.Service
	Gateway       payments.Gateway
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutUserLimit,
		cfg.RateLimit.CheckoutIPLimit,
	)
	cache := deps.Cache

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(cache, logg))

		buyerOnly := middleware.RequireRole(logg, enums.ActorRoleBuyer)
		throttled := middleware.RateLimit(checkoutPolicy, cache, logg)

		r.Route("/orders", func(r chi.Router) {
			r.With(buyerOnly, throttled).Post("/", controllers.CreateOrder(deps.Checkout, logg))
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
			r.Get("/{orderId}/invoice", controllers.GetInvoice(deps.Invoices, logg))
			r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
		})

		r.Patch("/sub-orders/{subOrderId}/status", controllers.UpdateSubOrderStatus(deps.Orders, logg))

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleSeller))
			r.Get("/sub-orders", controllers.ListSellerSubOrders(deps.Orders, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.GetWallet(deps.Wallet, logg))
			r.Get("/transactions", controllers.ListWalletTransactions(deps.Wallet, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.ListAddresses(deps.Addresses, logg))
			r.Post("/", controllers.CreateAddress(deps.Addresses, logg))
		})

		if deps.Gateway != nil {
			r.With(buyerOnly, throttled).Post("/payments/orders", controllers.CreatePaymentOrder(deps.Gateway, logg))
		}
	})

	return r
}

func readinessDeps(deps Dependencies) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["database"] = deps.DB
	}
	if deps.Cache != nil {
		out["redis"] = deps.Cache
	}
	return out
}
