package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/settlement-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/settlement-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/settlement-backend/api/controllers/webhooks"
	"github.com/angelmondragon/settlement-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/notifications"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payments"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer depends on.
type RedisStore interface {
	redis.Pinger
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type StripeEventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// WebhookGuard is the optional event-id fast path in front of the reconciler.
type WebhookGuard interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Services groups the domain services mounted on the router.
type Services struct {
	Checkout      checkoutsvc.Service
	Payments      payments.Issuer
	Orders        orders.Service
	Notifications notifications.Service
	Webhooks      webhookcontrollers.StripeReconciler
	Verifier      StripeEventVerifier
	WebhookGuard  WebhookGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisStore, logg))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svcs.Webhooks, svcs.Verifier, svcs.WebhookGuard, logg))
	})

	checkoutLimit := middleware.RateLimitPolicy{Name: "checkout", Limit: cfg.HTTP.CheckoutRateLimit, Window: cfg.HTTP.RateLimitWindow}
	paymentLimit := middleware.RateLimitPolicy{Name: "payment", Limit: cfg.HTTP.PaymentRateLimit, Window: cfg.HTTP.RateLimitWindow}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisStore, cfg.Checkout.IdempotencyKeyTTL, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleBuyer))
			r.With(middleware.RateLimit(checkoutLimit, redisStore, logg)).
				Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(svcs.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(svcs.Orders, logg))
				r.With(middleware.RateLimit(paymentLimit, redisStore, logg)).
					Post("/{orderId}/payment", controllers.IssuePayment(svcs.Payments, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSeller(logg))

			r.Get("/seller/orders", ordercontrollers.SellerList(svcs.Orders, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			})

			r.Put("/push-destinations", controllers.RegisterPushDestination(svcs.Notifications, logg))
			r.Delete("/push-destinations", controllers.RemovePushDestination(svcs.Notifications, logg))
		})
	})

	return r
}
