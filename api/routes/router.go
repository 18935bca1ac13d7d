package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/traderssquare/storefront-backend/api/controllers"
	billingcontrollers "github.com/traderssquare/storefront-backend/api/controllers/billing"
	webhookcontrollers "github.com/traderssquare/storefront-backend/api/controllers/webhooks"
	"github.com/traderssquare/storefront-backend/api/middleware"
	billingsvc "github.com/traderssquare/storefront-backend/internal/billing"
	cartsvc "github.com/traderssquare/storefront-backend/internal/cart"
	membershipsvc "github.com/traderssquare/storefront-backend/internal/membership"
	stripewebhook "github.com/traderssquare/storefront-backend/internal/webhooks/stripe"
	"github.com/traderssquare/storefront-backend/pkg/config"
	"github.com/traderssquare/storefront-backend/pkg/db"
	"github.com/traderssquare/storefront-backend/pkg/logger"
	"github.com/traderssquare/storefront-backend/pkg/redis"
	pkgstripe "github.com/traderssquare/storefront-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config            *config.Config
	Logger            *logger.Logger
	DB                db.Pinger
	Redis             redis.Pinger
	Metrics           prometheus.Gatherer
	StripeClient      *pkgstripe.Client
	CartService       *cartsvc.Service
	MembershipService *membershipsvc.Service
	BillingService    *billingsvc.Service
	WebhookService    *stripewebhook.Service
	WebhookGuard      *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	r.Use(middleware.CORS())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.WebhookService, p.StripeClient, p.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/cart", controllers.CartGet(p.CartService, logg))
		r.Put("/cart", controllers.CartReplace(p.CartService, logg))

		r.Get("/membership", controllers.MembershipStatus(p.MembershipService, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Post("/subscription-session", billingcontrollers.CreateSubscriptionSession(p.BillingService, logg))
			r.Post("/payment-session", billingcontrollers.CreatePaymentSession(p.BillingService, logg))
			r.Post("/portal-session", billingcontrollers.CreatePortalSession(p.BillingService, logg))
		})
	})

	return r
}
