// Package main is the entry point for the storefront API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kavexa/storefront/internal/api"
	"github.com/kavexa/storefront/internal/auth"
	"github.com/kavexa/storefront/internal/cart"
	"github.com/kavexa/storefront/internal/catalog"
	"github.com/kavexa/storefront/internal/config"
	"github.com/kavexa/storefront/internal/health"
	"github.com/kavexa/storefront/internal/idempotency"
	"github.com/kavexa/storefront/internal/jobs"
	"github.com/kavexa/storefront/internal/middleware"
	"github.com/kavexa/storefront/internal/notifier"
	"github.com/kavexa/storefront/internal/order"
	"github.com/kavexa/storefront/internal/payment"
	"github.com/kavexa/storefront/internal/review"
	"github.com/kavexa/storefront/internal/wishlist"
)

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Storefront API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Postgres
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("database unreachable", "error", err)
		pingCancel()
		os.Exit(1)
	}
	pingCancel()

	// Redis (carts, rate limiting)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	var rateLimits middleware.RateLimitStore
	var cartStore cart.Store
	var redisChecker api.HealthChecker
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(redisCtx).Err(); err != nil {
		// Degrade to in-process stores; readiness keeps probing Redis.
		logger.Warn("redis unreachable, using in-memory cart and rate-limit stores", "error", err)
		rateLimits = middleware.NewInMemoryRateLimitStore()
		cartStore = cart.NewInMemoryStore()
	} else {
		rateLimits = middleware.NewRedisRateLimitStore(rdb)
		cartStore = cart.NewRedisStore(rdb)
		redisChecker = health.NewRedisChecker(rdb)
	}
	redisCancel()

	// Repositories
	paymentRepo := payment.NewPostgresRepository(db, logger)
	webhookRepo := payment.NewPostgresWebhookRepository(db)
	orderRepo := order.NewPostgresRepository(db, logger)
	catalogRepo := catalog.NewPostgresRepository(db, logger)
	reviewRepo := review.NewPostgresRepository(db)
	wishlistRepo := wishlist.NewPostgresRepository(db)
	idempotencyRepo := idempotency.NewInMemoryRepository()

	// Notifications
	var notify notifier.Notifier
	if cfg.SMTPHost != "" {
		notify = notifier.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass)
	}

	// Gateway adapters. Stripe is mandatory; the Turkish providers are
	// registered only when configured.
	gateways := payment.Registry{
		payment.ProviderStripe: payment.NewStripeAdapter(cfg.StripeAPIKey, cfg.StripeWebhookSecret),
	}
	if cfg.PayThorAPIKey != "" {
		gateways[payment.ProviderPayThor] = payment.NewPayThorAdapter(
			cfg.PayThorBaseURL, cfg.PayThorAPIKey, cfg.PayThorWebhookSecret)
	}
	if cfg.PayTRMerchantID != "" {
		gateways[payment.ProviderPayTR] = payment.NewPayTRAdapter(
			cfg.PayTRMerchantID, cfg.PayTRMerchantKey, cfg.PayTRMerchantSalt, cfg.PayTRTestMode)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	paymentMetrics := payment.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, m := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, paymentMetrics, jobMetrics} {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Payment core
	orchestrator := payment.NewOrchestrator(gateways, paymentRepo, orderRepo, notify, logger, paymentMetrics)
	reconciler := payment.NewReconciler(paymentRepo, webhookRepo, orchestrator, logger, paymentMetrics)
	sweep := payment.NewSweep(payment.SweepConfig{
		Interval:   time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
		StaleAfter: time.Duration(cfg.SweepStaleAfterMinutes) * time.Minute,
		Logger:     logger,
		JobMetrics: jobMetrics,
	}, gateways, paymentRepo, orchestrator, paymentMetrics)
	sweep.Start(context.Background())
	defer sweep.Stop()

	// Idempotency key expiry
	cleanupStop := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idempotencyRepo, time.Hour, idempotency.DefaultExpiry, cleanupStop)
	defer close(cleanupStop)

	jwtSvc := auth.NewJWTService(cfg.JWTSecret)

	var corsOrigins []string
	if cfg.CORSAllowedOrigins != "" {
		for _, origin := range strings.Split(cfg.CORSAllowedOrigins, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	healthHandlers := api.NewHealthHandlers(health.NewDBChecker(db), redisChecker)
	if cfg.PayThorAPIKey != "" {
		healthHandlers.AddChecker("paythor", health.NewGatewayChecker("paythor", cfg.PayThorBaseURL))
	}
	if cfg.PayTRMerchantID != "" {
		healthHandlers.AddChecker("paytr", health.NewGatewayChecker("paytr", cfg.PayTRBaseURL))
	}

	handler := api.NewRouter(api.RouterConfig{
		Payments: api.NewPaymentHandlers(orchestrator, paymentRepo, orderRepo),
		Webhooks: api.NewWebhookHandlers(gateways, reconciler),
		Orders:   api.NewOrderHandlers(orderRepo, paymentRepo, cartStore, catalogRepo),
		Catalog:  api.NewCatalogHandlers(catalogRepo),
		Cart:     api.NewCartHandlers(cartStore, catalogRepo),
		Wishlist: api.NewWishlistHandlers(wishlistRepo, catalogRepo),
		Reviews:  api.NewReviewHandlers(reviewRepo, catalogRepo),
		Health:   healthHandlers,

		JWT:         jwtSvc,
		Idempotency: idempotencyRepo,
		RateLimits:  rateLimits,
		HTTPMetrics: httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			Registry: registry,
		}),
		Logger: logger,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   corsOrigins,
			AllowCredentials: true,
			MaxAge:           600,
		},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
