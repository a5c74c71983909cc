package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"travelpay/internal/app"
	"travelpay/internal/config"
	"travelpay/internal/gateway"
	"travelpay/internal/handler"
	internalRedis "travelpay/internal/redis"
	"travelpay/internal/repository"
	"travelpay/internal/repository/memory"
	"travelpay/internal/repository/postgres"
	"travelpay/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	if err := cfg.Store.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	var db *sql.DB
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to PostgreSQL")
	case config.StoreDriverMemory:
		// The memory booking store starts empty and has no write path, so
		// initiate answers 404 for every booking. Only GET /payment/verify and
		// GET /payments/:id are useful in this mode.
		log.Println("Using in-memory store: bookings are empty, POST /payment/initiate will return 404")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}

	if cfg.Gateway.SecretKey == "" {
		log.Println("CHAPA_SECRET_KEY is not set; payment requests will fail as misconfigured")
	}

	server, dispatcher := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Printf("notification queue not drained: %v", err)
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// notification dispatcher that must be drained on exit.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.NotificationDispatcher) {
	// Initialize repositories.
	var (
		paymentRepo repository.PaymentRepository
		bookingRepo repository.BookingRepository
	)
	if db != nil {
		paymentRepo = postgres.NewPaymentRepository(db)
		bookingRepo = postgres.NewBookingRepository(db)
	} else {
		paymentRepo = memory.NewPaymentRepository()
		bookingRepo = memory.NewBookingRepository()
	}

	// Initialize Redis stores.
	var lockStore internalRedis.LockStoreInterface
	if redisClient != nil {
		lockStore = internalRedis.NewLockStore(redisClient)
		bookingRepo = internalRedis.NewCachedBookingRepository(bookingRepo, internalRedis.NewCacheStore(redisClient))
	}

	// Initialize services.
	var mailer service.Mailer = service.LogMailer{}
	if cfg.Notification.SMTPAddr != "" {
		mailer = service.NewSMTPMailer(cfg.Notification)
	}
	dispatcher := service.NewNotificationDispatcher(paymentRepo, bookingRepo, mailer, cfg.Notification, nrApp)
	chapa := gateway.NewChapaClient(cfg.Gateway)
	paymentService := service.NewPaymentService(paymentRepo, bookingRepo, chapa, dispatcher, lockStore, cfg.Gateway)

	// Initialize handlers.
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		PaymentHandler: paymentHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, dispatcher
}
