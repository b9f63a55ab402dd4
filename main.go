package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Tesseract-Nexus/go-shared/metrics"

	"catalog-service/internal/background"
	"catalog-service/internal/config"
	"catalog-service/internal/gateways"
	"catalog-service/internal/handlers"
	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	natsClient "catalog-service/internal/nats"
	"catalog-service/internal/redis"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
)

func main() {
	// Load .env if present (local development)
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.New()

	logger := newLogger(cfg.App)

	// Initialize database connection
	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// Auto-migrate models
	if err := autoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis connection. The service degrades without it (no product
	// cache, every webhook delivery treated as first) but keeps running.
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, caching and webhook dedup disabled")
		redisClient = nil
	} else {
		logger.Info("Connected to Redis successfully")
		defer redisClient.Close()
	}

	// Initialize NATS connection for event publishing
	nc, err := natsClient.NewClient(nil) // Uses NATS_URL env var or default
	if err != nil {
		logger.WithError(err).Warn("Failed to connect to NATS, event publishing disabled")
		nc = nil
	} else {
		logger.Info("Connected to NATS successfully")
		defer nc.Close()
	}

	// Initialize metrics
	metricsCollector := initMetrics(db, logger)

	// Initialize repositories
	catalogRepo := repository.NewCatalogRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize payment gateway registry
	registry := gateways.NewRegistry(
		gateways.NewPaystack(cfg.Payment.PaystackSecretKey),
		gateways.NewRazorpay(cfg.Payment.RazorPayKeyID, cfg.Payment.RazorPayKeySecret),
		gateways.NewStripe(cfg.Payment.StripeSecretKey),
		gateways.NewFlutterwave(cfg.Payment.FlutterwaveSecretKey),
		gateways.NewMercadoPago(cfg.Payment.MercadoPagoAccessToken),
	)

	// Initialize services
	cacheTTL := time.Duration(cfg.Sync.CacheTTLMinutes) * time.Minute
	syncService := services.NewSyncService(catalogRepo, nc, redisClient, logger, cacheTTL)
	paymentService := services.NewPaymentService(paymentRepo, registry, nc, redisClient, logger, cfg.Payment.FrontURL)
	walletService := services.NewWalletService(paymentRepo)
	tokenTTL := time.Duration(cfg.App.TokenTTLHours) * time.Hour
	authService := services.NewAuthService(userRepo, cfg.App.JWTSecret, tokenTTL, logger)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(syncService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, authService, logger)
	walletHandler := handlers.NewWalletHandler(walletService)
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(db, nc, redisClient)

	// Start background jobs
	runner := background.NewRunner(paymentService, cfg.Cleanup, logger)
	if err := runner.Start(); err != nil {
		logger.Fatalf("Failed to start background runner: %v", err)
	}
	defer runner.Stop()

	// Setup router
	router := setupRouter(cfg, logger, metricsCollector, authService,
		productHandler, paymentHandler, walletHandler, authHandler, healthHandler)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("Starting catalog-service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	metricsCollector *metrics.Metrics,
	authService *services.AuthService,
	productHandler *handlers.ProductHandler,
	paymentHandler *handlers.PaymentHandler,
	walletHandler *handlers.WalletHandler,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:3000", // Storefront (local)
		"http://localhost:4200", // Seller dashboard (local)
		cfg.Payment.FrontURL,    // Storefront (deployed)
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.AllowCredentials = true

	// Global middleware
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(logger))
	router.Use(metricsCollector.Middleware())

	// Metrics endpoint (Prometheus scraping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Gateway webhooks carry their own vendor tokens, no session auth
		v1.POST("/webhooks/:gateway", paymentHandler.Webhook)

		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.JWTAuth(authService), authHandler.Me)
		}

		// Authenticated user routes
		user := v1.Group("", middleware.JWTAuth(authService))
		{
			user.GET("/wallet", walletHandler.Get)
			user.GET("/wallet/history", walletHandler.History)
			user.POST("/payments/:gateway/orders/:id", paymentHandler.ProcessOrder)
			user.POST("/payments/:gateway/wallet", paymentHandler.ProcessWallet)
		}

		// Seller routes
		seller := v1.Group("/seller", middleware.JWTAuth(authService), middleware.RequireRole(models.RoleSeller))
		{
			seller.POST("/products/parent-sync", productHandler.ParentSync)
			seller.GET("/products/:uuid", productHandler.Get)
			seller.POST("/stocks/:id/addons", productHandler.SyncAddons)
			seller.DELETE("/products", productHandler.Delete)
		}
	}

	return router
}

func newLogger(cfg config.AppConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Shop{},
		&models.Category{},
		&models.Product{},
		&models.ProductTranslation{},
		&models.ProductProperty{},
		&models.MetaTag{},
		&models.Gallery{},
		&models.Tag{},
		&models.TagTranslation{},
		&models.Discount{},
		&models.ProductDiscount{},
		&models.Stock{},
		&models.ExtraValue{},
		&models.StockAddon{},
		&models.Bonus{},
		&models.User{},
		&models.Order{},
		&models.Transaction{},
		&models.PaymentProcess{},
		&models.Wallet{},
		&models.WalletHistory{},
	)
}

func initMetrics(db *gorm.DB, logger *logrus.Logger) *metrics.Metrics {
	m := metrics.New(metrics.Config{
		ServiceName: "catalog-service",
		Namespace:   "marketplace",
		Subsystem:   "catalog",
	})

	// Database connection pool metrics
	dbConnectionsOpen := m.RegisterGauge(
		"marketplace_catalog_db_connections_open",
		"Number of open database connections",
	)
	dbConnectionsIdle := m.RegisterGauge(
		"marketplace_catalog_db_connections_idle",
		"Number of idle database connections",
	)
	dbConnectionsInUse := m.RegisterGauge(
		"marketplace_catalog_db_connections_in_use",
		"Number of database connections currently in use",
	)

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			sqlDB, err := db.DB()
			if err != nil {
				logger.WithError(err).Warn("Failed to get database instance for metrics")
				continue
			}

			stats := sqlDB.Stats()
			dbConnectionsOpen.Set(float64(stats.OpenConnections))
			dbConnectionsIdle.Set(float64(stats.Idle))
			dbConnectionsInUse.Set(float64(stats.InUse))
		}
	}()

	return m
}
