package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-cursos/internal/auth"
	"ms-cursos/internal/catalog"
	catalog_api "ms-cursos/internal/catalog/api"
	catalog_db "ms-cursos/internal/catalog/db"
	"ms-cursos/internal/config"
	"ms-cursos/internal/database/migrations"
	"ms-cursos/internal/images"
	"ms-cursos/internal/kafka"
	"ms-cursos/internal/logger"
	"ms-cursos/internal/mailchimp"
	"ms-cursos/internal/notifier"
	"ms-cursos/internal/payments"
	payments_api "ms-cursos/internal/payments/api"
	payments_db "ms-cursos/internal/payments/db"
	"ms-cursos/internal/platform"
	"ms-cursos/internal/registrations"
	registrations_api "ms-cursos/internal/registrations/api"
	registrations_db "ms-cursos/internal/registrations/db"
	"ms-cursos/internal/stats"
	stats_api "ms-cursos/internal/stats/api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	if cfg.Database.DSN == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Cursos Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	if version, _, err := runner.Version(); err == nil {
		logger.Info("DATABASE", fmt.Sprintf("Schema at version %d", version))
	}

	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers)
		logger.Info("KAFKA", "Kafka producer initialized successfully")

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.Topics()); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		defer kafkaProducer.Close()
	} else {
		logger.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	payments.InitStripe(cfg.Stripe.SecretKey)
	stripeCfg := payments.StripeConfig{
		Currency:      cfg.Stripe.Currency,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}

	mailer := notifier.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass, cfg.SMTP.From)
	platformClient := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.APIKey)
	listClient := mailchimp.NewClient(cfg.Mailchimp.APIURL, cfg.Mailchimp.APIKey, cfg.Mailchimp.ListID)
	resizer := images.NewResizer(logger)
	defer resizer.Close()

	var paymentEvents payments.Publisher
	var registrationEvents registrations.Publisher
	if kafkaProducer != nil {
		paymentEvents = kafkaProducer
		registrationEvents = kafkaProducer
	}

	catalogService := catalog.NewService(&catalog_db.DB{Bun: bunDB}, resizer, logger)
	paymentService := payments.NewService(
		&payments_db.DB{Bun: bunDB},
		mailer,
		notifier.NewFeeCalculator(),
		paymentEvents,
		logger,
	)
	registrationService := registrations.NewService(
		&registrations_db.DB{Bun: bunDB},
		platformClient,
		listClient,
		registrationEvents,
		logger,
	)
	statsCache := stats.NewRedisCache(redisClient, cfg.Redis.StatsTTL, logger)
	statsService := stats.NewService(&stats.DB{Bun: bunDB}, &payments_db.DB{Bun: bunDB}, statsCache, logger)

	catalogHandler := catalog_api.NewHandler(catalogService, logger)
	paymentHandler := payments_api.NewHandler(paymentService, stripeCfg, logger)
	registrationHandler := registrations_api.NewHandler(registrationService, logger)
	statsHandler := stats_api.NewHandler(statsService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Route("/api", func(r chi.Router) {
		paymentHandler.RegisterRoutes(r)
		registrationHandler.RegisterRoutes(r)
	})
	logger.Info("ROUTER", "Payment routes registered under /api/pagos")
	logger.Info("ROUTER", "Registration routes registered under /api/registros")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		logger.Info("AUTH", "OIDC middleware applied to admin API routes")

		r.Route("/api/admin", func(r chi.Router) {
			catalogHandler.RegisterRoutes(r)
			statsHandler.RegisterRoutes(r)
		})
		logger.Info("ROUTER", "Catalog routes registered under /api/admin/cursos")
		logger.Info("ROUTER", "Stats routes registered under /api/admin/stats")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Cursos Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Cursos Service shutdown complete")
	}
}
