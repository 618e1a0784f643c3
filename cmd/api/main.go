package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upliftlabs/calculator-backend/api/routes"
	"github.com/upliftlabs/calculator-backend/internal/catalog"
	"github.com/upliftlabs/calculator-backend/internal/checkout"
	"github.com/upliftlabs/calculator-backend/internal/crm"
	"github.com/upliftlabs/calculator-backend/internal/payments"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	stripewebhook "github.com/upliftlabs/calculator-backend/internal/webhooks/stripe"
	"github.com/upliftlabs/calculator-backend/pkg/config"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
	"github.com/upliftlabs/calculator-backend/pkg/metrics"
	pkgredis "github.com/upliftlabs/calculator-backend/pkg/redis"
	pkgstripe "github.com/upliftlabs/calculator-backend/pkg/stripe"
)

const guardTTL = 24 * time.Hour

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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	var (
		redisClient  *pkgredis.Client
		sessionStore checkout.SessionStore
		eventGuard   stripewebhook.Guard
		confirmGuard stripewebhook.Guard
	)
	if cfg.Redis.Configured() {
		redisClient, err = pkgredis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()

		sessionStore, err = checkout.NewRedisSessionStore(redisClient, cfg.Pricing.SessionTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to build session store", err)
			os.Exit(1)
		}
		eventGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, guardTTL, "stripe-event")
		if err != nil {
			logg.Error(context.Background(), "failed to build event guard", err)
			os.Exit(1)
		}
		confirmGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, guardTTL, "confirm")
		if err != nil {
			logg.Error(context.Background(), "failed to build confirm guard", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured, using in-process session store")
		sessionStore = checkout.NewMemorySessionStore()
		eventGuard = stripewebhook.NewMemoryGuard(guardTTL)
		confirmGuard = stripewebhook.NewMemoryGuard(guardTTL)
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	cat := catalog.Default()
	engine, err := quote.NewEngine(cat, cfg.Pricing.TaxRate, cfg.Pricing.Currency)
	if err != nil {
		logg.Error(context.Background(), "failed to build quote engine", err)
		os.Exit(1)
	}

	orchestrator, err := payments.NewOrchestrator(payments.OrchestratorParams{
		Client:      payments.NewProviderClient(stripeClient),
		Policy:      cfg.Stripe.PaymentPolicy,
		Currency:    cfg.Pricing.Currency,
		BaseURL:     cfg.Pricing.BaseURL,
		TaxRate:     cfg.Pricing.TaxRate,
		TrialDays:   cfg.Stripe.TrialDays,
		CallTimeout: cfg.Stripe.CallTimeout,
		Metrics:     checkoutMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build payment orchestrator", err)
		os.Exit(1)
	}

	crmClient := crm.NewClient(crm.ClientParams{
		WebhookURL:  cfg.CRM.WebhookURL,
		ContractURL: cfg.CRM.ContractURL(),
		Timeout:     cfg.CRM.Timeout,
		Logger:      logg,
		Metrics:     checkoutMetrics,
	})
	notifier, err := crm.NewNotifier(crmClient, cfg.CRM.Timeout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build crm notifier", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Store:           sessionStore,
		Engine:          engine,
		Orchestrator:    orchestrator,
		Notifier:        notifier,
		ConfirmGuard:    confirmGuard,
		MinMonthlyCents: cfg.Pricing.MinMonthlyCents,
		Logger:          logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Checkout: checkoutService,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build webhook service", err)
		os.Exit(1)
	}

	var pinger pkgredis.Pinger
	if redisClient != nil {
		pinger = redisClient
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		RedisPinger:    pinger,
		Catalog:        cat,
		QuoteEngine:    engine,
		Checkout:       checkoutService,
		Notifier:       notifier,
		StripeClient:   stripeClient,
		WebhookService: webhookService,
		WebhookGuard:   eventGuard,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ExtraOrigins:   []string{cfg.Pricing.BaseURL},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
