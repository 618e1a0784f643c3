package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/upliftlabs/calculator-backend/api/controllers"
	webhookcontrollers "github.com/upliftlabs/calculator-backend/api/controllers/webhooks"
	"github.com/upliftlabs/calculator-backend/api/middleware"
	"github.com/upliftlabs/calculator-backend/internal/catalog"
	"github.com/upliftlabs/calculator-backend/internal/checkout"
	"github.com/upliftlabs/calculator-backend/internal/crm"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	stripewebhook "github.com/upliftlabs/calculator-backend/internal/webhooks/stripe"
	"github.com/upliftlabs/calculator-backend/pkg/config"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
	pkgredis "github.com/upliftlabs/calculator-backend/pkg/redis"
	pkgstripe "github.com/upliftlabs/calculator-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	RedisPinger    pkgredis.Pinger
	Catalog        *catalog.Catalog
	QuoteEngine    *quote.Engine
	Checkout       *checkout.Service
	Notifier       *crm.Notifier
	StripeClient   *pkgstripe.Client
	WebhookService *stripewebhook.Service
	WebhookGuard   stripewebhook.Guard
	MetricsHandler http.Handler
	ExtraOrigins   []string
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(params.ExtraOrigins...),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.RedisPinger))
	})

	if params.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", params.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", controllers.CatalogList(params.Catalog, logg))
		r.Post("/quotes", controllers.QuotePreview(params.QuoteEngine, logg))
		r.Post("/leads", controllers.LeadCreate(params.Notifier, params.QuoteEngine, logg))

		r.Route("/checkout/sessions", func(r chi.Router) {
			r.Post("/", controllers.CheckoutStart(params.Checkout, logg))
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", controllers.CheckoutGet(params.Checkout, logg))
				r.Put("/selection", controllers.CheckoutUpdateSelection(params.Checkout, logg))
				r.Post("/lead", controllers.CheckoutCaptureLead(params.Checkout, logg))
				r.Post("/payment", controllers.CheckoutBeginPayment(params.Checkout, logg))
				r.Post("/payment/confirm", controllers.CheckoutConfirmPayment(params.Checkout, logg))
				r.Post("/signature", controllers.CheckoutSubmitSignature(params.Checkout, logg))
			})
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(params.WebhookService, params.StripeClient, params.WebhookGuard, logg))
		})
	})

	return r
}
