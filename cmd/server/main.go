package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"servicedesk/internal/app"
	"servicedesk/internal/config"
	"servicedesk/internal/events"
	"servicedesk/internal/handler"
	"servicedesk/internal/middleware"
	"servicedesk/internal/mpesa"
	internalRedis "servicedesk/internal/redis"
	"servicedesk/internal/repository/postgres"
	"servicedesk/internal/service"
)

func main() {
	// A missing .env is normal outside local development.
	envErr := godotenv.Load()

	// Load configuration.
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment")
	}

	// The callback URL is checked before anything connects.
	if err := mpesa.ValidateCallbackURL(cfg.Mpesa.CallbackURL); err != nil {
		logger.Fatal("invalid MPESA_CALLBACK_URL", zap.Error(err))
	}
	if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" {
		logger.Warn("provider credentials not configured; payment initiation will fail")
	}

	location, err := time.LoadLocation(cfg.Mpesa.Timezone)
	if err != nil {
		logger.Fatal("invalid MPESA_TIMEZONE", zap.String("timezone", cfg.Mpesa.Timezone), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Error("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	if err := app.Migrate(db, logger.With(zap.String("component", "migrate"))); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("connected to Redis")
	} else {
		logger.Warn("redis disabled; price cache, initiation lock and idempotency replay are off")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.With(zap.String("component", "kafka")))
		logger.Info("publishing payment events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close event publisher", zap.Error(err))
		}
	}()

	// Wire dependencies.
	w := wire(db, redisClient, nrApp, publisher, location, cfg, logger)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	seeded, err := w.pricing.Seed(seedCtx)
	seedCancel()
	if err != nil {
		logger.Fatal("failed to seed pricing", zap.Error(err))
	}
	if seeded > 0 {
		logger.Info("seeded pricing table", zap.Int("entries", seeded))
	}

	runCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	if cfg.Sweeper.Enabled {
		workers.Add(1)
		go func() {
			defer workers.Done()
			w.sweeper.Run(runCtx)
		}()
	}

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := w.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	stopWorkers()
	workers.Wait()

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

type wiring struct {
	server  *http.Server
	pricing *service.PricingService
	sweeper *service.PaymentSweeper
}

// wire wires all dependencies and returns the HTTP server and background workers.
func wire(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	publisher events.Publisher,
	location *time.Location,
	cfg *config.Config,
	logger *zap.Logger,
) *wiring {
	// Initialize Redis stores.
	var priceCache internalRedis.PriceCacheInterface
	var lockStore internalRedis.LockStoreInterface
	if redisClient != nil {
		priceCache = internalRedis.NewPriceCache(redisClient, cfg.Pricing.CacheTTL)
		lockStore = internalRedis.NewLockStore(redisClient)
	}

	// Initialize repositories.
	requestRepo := postgres.NewServiceRequestRepository(db)
	attemptRepo := postgres.NewPaymentAttemptRepository(db)
	pricingRepo := postgres.NewPricingRepository(db)

	// Initialize the provider client.
	var transport http.RoundTripper
	if nrApp != nil {
		transport = newrelic.NewRoundTripper(nil)
	}
	gateway := mpesa.NewClient(mpesa.Config{
		BaseURL:         cfg.Mpesa.BaseURL,
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		ShortCode:       cfg.Mpesa.ShortCode,
		PassKey:         cfg.Mpesa.PassKey,
		CallbackURL:     cfg.Mpesa.CallbackURL,
		CallbackToken:   cfg.Mpesa.CallbackToken,
		TransactionType: cfg.Mpesa.TransactionType,
		Timeout:         cfg.Mpesa.Timeout,
		Location:        location,
	}, logger.With(zap.String("component", "mpesa")), mpesa.WithTransport(transport))

	lockTTL := mpesa.LockTTL(cfg.Mpesa.Timeout)

	// Initialize services.
	svcLogger := logger.With(zap.String("component", "service"))
	notificationService := service.NewNotificationService(publisher, logger.With(zap.String("component", "notifications")))
	pricingService := service.NewPricingService(pricingRepo, priceCache, svcLogger)
	requestService := service.NewServiceRequestService(requestRepo, pricingService, svcLogger)
	paymentService := service.NewPaymentService(requestRepo, attemptRepo, gateway, lockStore, lockTTL, svcLogger)
	callbackService := service.NewCallbackService(requestRepo, attemptRepo, notificationService, logger.With(zap.String("component", "reconciler")))
	sweeper := service.NewPaymentSweeper(attemptRepo, gateway, callbackService, service.SweeperConfig{
		Interval:  cfg.Sweeper.Interval,
		MinAge:    cfg.Sweeper.MinAge,
		MaxAge:    cfg.Sweeper.MaxAge,
		BatchSize: cfg.Sweeper.BatchSize,
	}, logger.With(zap.String("component", "sweeper")))

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	}

	if cfg.Security.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set; admin routes are disabled")
	}

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		ServiceRequestHandler: handler.NewServiceRequestHandler(requestService),
		PaymentHandler:        handler.NewPaymentHandler(paymentService),
		CallbackHandler:       handler.NewCallbackHandler(callbackService, logger.With(zap.String("component", "callback"))),
		PricingHandler:        handler.NewPricingHandler(pricingService),
		RedisClient:           redisClient,
		NewRelicApp:           nrApp,
		RateLimiter:           rateLimiter,
		Mpesa:                 cfg.Mpesa,
		AdminToken:            cfg.Security.AdminToken,
		AllowedOrigins:        cfg.Server.AllowedOrigins,
		Logger:                logger,
	})

	// Create HTTP server.
	return &wiring{
		server: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		pricing: pricingService,
		sweeper: sweeper,
	}
}
