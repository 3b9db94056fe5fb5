package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/pointshare/redeem/internal/auth"
	"github.com/pointshare/redeem/internal/background"
	"github.com/pointshare/redeem/internal/config"
	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/events"
	"github.com/pointshare/redeem/internal/getclient"
	"github.com/pointshare/redeem/internal/handlers"
	middlewareCustom "github.com/pointshare/redeem/internal/middleware"
	"github.com/pointshare/redeem/internal/repositories"
	"github.com/pointshare/redeem/internal/routes"
	"github.com/pointshare/redeem/internal/services"
	"github.com/pointshare/redeem/internal/sessioncache"
	pkghttp "github.com/pointshare/redeem/pkg/http"
	pkglogger "github.com/pointshare/redeem/pkg/logger"
)

// sessionStore is a session cache that can also be swept by the cleanup task
type sessionStore interface {
	sessioncache.Store
	background.SessionPurger
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Credential vault. A missing key does not stop the server; linking and
	// code redemption fail until it is set.
	cipher := auth.NewSecretCipher(cfg.Vault.EncryptionKey)
	if err := cipher.Err(); err != nil {
		logger.Warn("GET credential encryption is not available", slog.Any("error", err))
	}

	// GET session cache
	var sessions sessionStore
	switch cfg.Session.Backend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		defer redisClient.Close()
		sessions = sessioncache.NewRedisCache(redisClient, cfg.Session.TTL, logger)
	default:
		sessions = sessioncache.NewMemoryCache(cfg.Session.TTL, cfg.Session.MaxEntries)
	}
	logger.Info("GET session cache ready", slog.String("backend", cfg.Session.Backend))

	commerce := getclient.New(getclient.Config{
		Endpoint:    cfg.Commerce.Endpoint,
		Timeout:     cfg.Commerce.Timeout,
		MaxRetries:  cfg.Commerce.MaxRetries,
		BackoffStep: cfg.Commerce.BackoffStep,
	}, logger)

	// Domain events
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.RabbitMQURL != "" {
		amqpPublisher := events.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Queue, logger)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		logger.Info("publishing events to RabbitMQ", slog.String("queue", cfg.Events.Queue))
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	credentialRepo := repositories.NewCredentialRepository(db)
	pointsRepo := repositories.NewPointsRepository(db)
	requestRepo := repositories.NewRequestRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	resolver := services.NewSessionResolver(commerce, sessions, logger)

	requestService := services.NewRequestService(userRepo, requestRepo, uow, publisher, auditLogger, logger)
	acceptanceService := services.NewAcceptanceService(userRepo, requestRepo, pointsRepo, uow, publisher, auditLogger, cfg.Redemption.CodeTTL, logger)
	redemptionService := services.NewRedemptionService(
		requestRepo,
		credentialRepo,
		uow,
		cipher,
		resolver,
		commerce,
		publisher,
		auditLogger,
		cfg.Redemption.CodeTTL,
		cfg.Redemption.RefreshInterval,
		logger,
	)
	credentialService := services.NewCredentialService(
		userRepo,
		credentialRepo,
		pointsRepo,
		cipher,
		commerce,
		resolver,
		sessions,
		auditLogger,
		logger,
	)
	pointsService := services.NewPointsService(pointsRepo, logger)
	notificationService := services.NewNotificationService(notificationRepo, logger)

	// Initialize handlers
	requestHandler := handlers.NewRequestHandler(requestService, acceptanceService, redemptionService)
	credentialHandler := handlers.NewCredentialHandler(credentialService)
	accountHandler := handlers.NewAccountHandler(pointsService, notificationService)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		sessions,
		notificationRepo,
		cfg.Cleanup.NotificationRetention,
		logger,
		cfg.Cleanup.Interval,
	)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	trustedProxies := pkghttp.ParseTrustedProxies(cfg.Server.TrustedProxies)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, trustedProxies))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(
		router,
		requestHandler,
		credentialHandler,
		accountHandler,
		handlers.Health(db),
		tokenManager,
		trustedProxies,
	)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
