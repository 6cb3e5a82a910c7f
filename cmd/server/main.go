package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/dar/internal"
	"github.com/dukerupert/dar/internal/billing"
	"github.com/dukerupert/dar/internal/cartstore"
	"github.com/dukerupert/dar/internal/cookie"
	"github.com/dukerupert/dar/internal/email"
	"github.com/dukerupert/dar/internal/events"
	"github.com/dukerupert/dar/internal/handler/admin"
	"github.com/dukerupert/dar/internal/handler/storefront"
	"github.com/dukerupert/dar/internal/handler/webhook"
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/notify"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/router"
	"github.com/dukerupert/dar/internal/routes"
	"github.com/dukerupert/dar/internal/service"
	"github.com/dukerupert/dar/internal/shipping"
	"github.com/dukerupert/dar/internal/telemetry"
	"github.com/dukerupert/dar/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Error tracking and metrics
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	telemetry.InitBusinessMetrics("dar")
	httpMetrics := middleware.NewMetrics("dar", nil)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(ctx, sqlDB, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)

	// Guest carts live in Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	guestCarts := cartstore.NewRedisStore(rdb, cfg.Cart.GuestTTL)

	// Payment gateway
	gateway, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}
	logger.Info("Payment gateway initialized", "provider", gateway.Name())

	// Shipping rates
	rates, err := shipping.LoadRateTable(cfg.Shipping.RatesFile)
	if err != nil {
		return fmt.Errorf("failed to load shipping rates: %w", err)
	}
	if cfg.Shipping.DefaultRate > 0 {
		if rates, err = rates.WithFallback(cfg.Shipping.DefaultRate); err != nil {
			return fmt.Errorf("invalid shipping default rate: %w", err)
		}
	}
	logger.Info("Shipping rates loaded", "governorates", len(rates.Governorates()))

	// Order events
	publisher, err := events.New(events.Config{
		Driver:       cfg.Events.Driver,
		NATSURL:      cfg.Events.NATSURL,
		KafkaBrokers: cfg.Events.KafkaBrokers,
		Topic:        cfg.Events.Topic,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize events publisher: %w", err)
	}
	defer publisher.Close()
	logger.Info("Order events publisher initialized", "driver", cfg.Events.Driver)

	// Email delivery
	mailer, err := email.NewService(newEmailSender(ctx, cfg, logger), cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	notifier := notify.NewDispatcher(store, cfg.BaseURL, logger)

	// Services
	cartService := service.NewCartService(store, guestCarts, logger)
	promoService := service.NewPromoService(store, logger)
	orderService := service.NewOrderService(store, notifier, publisher, logger)
	checkoutService := service.NewCheckoutService(
		store,
		cartService,
		promoService,
		rates,
		gateway,
		notifier,
		publisher,
		service.CheckoutConfig{
			BaseURL:  cfg.BaseURL,
			Currency: cfg.Payment.Paymob.Currency,
		},
		logger,
	)
	paymentService := service.NewPaymentService(store, cartService, gateway, notifier, publisher, logger)

	// Background worker
	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		hostname, _ := os.Hostname()
		w := worker.NewWorker(store, mailer, worker.Config{
			WorkerID:        hostname,
			PollInterval:    cfg.Worker.PollInterval,
			MaxConcurrency:  cfg.Worker.Concurrency,
			CleanupInterval: 24 * time.Hour,
		}, logger)
		go func() {
			defer close(workerDone)
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "error", err)
			}
		}()
	} else {
		close(workerDone)
	}

	// ==========================================================================
	// HTTP
	// ==========================================================================

	cookies := cookie.NewConfig(cfg.CookieDomain, cfg.Env == "prod")

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env != "prod" {
		securityConfig.HSTSMaxAge = 0
	}

	checkoutLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig())
	defer checkoutLimiter.Stop()

	r := router.New(
		router.Recovery(logger),
		telemetry.SentryMiddleware(),
		middleware.RequestID,
		middleware.WithClientIP(cfg.TrustProxy),
		middleware.WithRequestLogger(logger),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		router.Logger(logger),
	)

	routes.RegisterStorefrontRoutes(r, routes.StorefrontDeps{
		SessionSecret:   cfg.SessionSecret,
		Cookies:         cookies,
		CartHandler:     storefront.NewCartHandler(cartService, promoService, cookies),
		CheckoutHandler: storefront.NewCheckoutHandler(checkoutService),
		TrackingHandler: storefront.NewTrackingHandler(orderService),
		CheckoutLimiter: checkoutLimiter,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		PaymentHandler: webhook.NewPaymentHandler(paymentService, gateway),
	})
	routes.RegisterAdminRoutes(r, routes.AdminDeps{
		AdminToken:   cfg.AdminToken,
		OrderHandler: admin.NewOrderHandler(orderService),
	})
	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Metrics: httpMetrics.Handler(),
		Health:  healthHandler(store),
	})

	var h http.Handler = r
	if len(cfg.CORSOrigins) > 0 {
		h = router.CORS(cfg.CORSOrigins)(r)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	// ==========================================================================
	// Shutdown
	// ==========================================================================

	logger.Info("Shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop before the shutdown deadline")
	}

	logger.Info("Shutdown complete")
	return nil
}

func newGateway(cfg *internal.Config) (billing.Gateway, error) {
	switch cfg.Payment.Provider {
	case "stripe":
		return billing.NewStripeGateway(billing.StripeConfig{
			APIKey:        cfg.Payment.Stripe.SecretKey,
			WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
			SuccessURL:    cfg.BaseURL + "/checkout/success?order={ORDER_NUMBER}",
			CancelURL:     cfg.BaseURL + "/checkout/cancelled?order={ORDER_NUMBER}",
		})
	default:
		p := cfg.Payment.Paymob
		return billing.NewPaymobGateway(billing.PaymobConfig{
			APIKey:              p.APIKey,
			HMACSecret:          p.HMACSecret,
			CardIntegrationID:   p.CardIntegrationID,
			WalletIntegrationID: p.WalletIntegrationID,
			IframeID:            p.IframeID,
			BaseURL:             p.BaseURL,
			Currency:            p.Currency,
		}, &http.Client{
			Timeout:   15 * time.Second,
			Transport: &telemetry.HTTPTransport{},
		})
	}
}

// newEmailSender prefers Postmark when a token is configured.
func newEmailSender(ctx context.Context, cfg *internal.Config, logger *slog.Logger) email.Sender {
	if cfg.Email.PostmarkToken != "" {
		logger.Info("Email delivery via Postmark")
		return email.NewPostmarkSender(cfg.Email.PostmarkToken)
	}

	logger.Info("Email delivery via SMTP", "host", cfg.Email.Host, "port", cfg.Email.Port)
	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     int(cfg.Email.Port),
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}, logger)

	if err := sender.TestConnection(ctx); err != nil {
		logger.Warn("SMTP connection check failed", "error", err)
	}
	return sender
}

func healthHandler(store *repository.PoolStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			middleware.GetLogger(r.Context()).Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
