package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	echoSwagger "github.com/swaggo/echo-swagger"

	"billbook/docs"
	"billbook/internal/caching"
	"billbook/internal/common"
	"billbook/internal/config"
	"billbook/internal/handlers"
	"billbook/internal/jobs/background"
	"billbook/internal/middleware"
	"billbook/internal/money"
	"billbook/internal/obs"
	"billbook/internal/repositories"
	"billbook/internal/services"
	"billbook/pkg/database"
)

const version = "1.0.0"

// @title Billbook API
// @version 1.0
// @description GST invoicing, expenses and tax reports for small businesses.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := obs.NewLogger("console", "info")
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	registry, httpMetrics, domainMetrics := newMetrics()

	ctx := context.Background()

	if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	redisClient := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	defer redisClient.Close()
	cacheSvc := caching.NewCacheService(redisClient, logger)

	storage, err := services.NewMinioStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize object storage")
	}
	for _, bucket := range []string{cfg.PDFBucket, cfg.ReceiptBucket} {
		if err := storage.EnsureBucketExists(ctx, bucket); err != nil {
			logger.Warn().Err(err).Str("bucket", bucket).Msg("bucket not available; uploads will fail until it is")
		}
	}

	profile, err := cfg.Profile()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load business profile")
	}
	if profile.Business.State == "" {
		logger.Warn().Msg("business state is not set; invoices without a gst type default to CGST+SGST")
	}

	auth, err := middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWKSURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize authentication")
	}
	defer auth.Close()

	rateLimiter, err := middleware.NewRateLimiter(redisClient, cfg.RateLimit, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize rate limiter")
	}

	// Repositories
	invoiceRepo := repositories.NewInvoiceRepo(pool)
	clientRepo := repositories.NewClientRepo(pool)
	expenseRepo := repositories.NewExpenseRepo(pool)

	// Services
	pdfSvc := services.NewPDFService(money.ParseLocale(profile.Invoice.NumberLocale), nil, domainMetrics)
	invoiceSvc := services.NewInvoiceService(
		invoiceRepo, clientRepo, cacheSvc, storage, pdfSvc, profile,
		services.InvoiceServiceConfig{PDFBucket: cfg.PDFBucket, PresignTTL: cfg.PresignTTL},
		logger, domainMetrics,
	)
	clientSvc := services.NewClientService(clientRepo, invoiceRepo, cacheSvc, logger)
	expenseSvc := services.NewExpenseService(
		expenseRepo, cacheSvc, storage, profile,
		services.ExpenseServiceConfig{ReceiptBucket: cfg.ReceiptBucket, PresignTTL: cfg.PresignTTL},
		logger,
	)
	reportSvc := services.NewReportService(invoiceRepo, expenseRepo, cacheSvc, cfg.ReportCacheTTL, logger, domainMetrics)

	scheduler, err := background.NewJobScheduler(invoiceSvc, cfg.OverdueCheckInterval, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create job scheduler")
	}
	scheduler.Start()

	e := echo.New()
	e.HideBanner = true
	e.Validator = common.NewRequestValidator()

	versions := middleware.NewVersionMiddleware()

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestID())
	e.Use(obs.RequestLogger(logger))
	e.Use(httpMetrics.Middleware())
	e.Use(versions.APIVersionResolver())

	handlers.NewHealthHandlers(pool, cacheSvc, storage, cfg.PDFBucket, version).RegisterRoutes(e)
	e.GET("/metrics", obs.Handler(registry))

	docs.SwaggerInfo.Version = version
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := versions.VersionRoute(e, "v1")
	v1.Use(auth.Middleware(), rateLimiter.Middleware())

	handlers.NewTaxHandlers(invoiceSvc).RegisterRoutes(v1)
	handlers.NewClientHandlers(clientSvc).RegisterRoutes(v1)
	handlers.NewInvoiceHandlers(invoiceSvc).RegisterRoutes(v1)
	handlers.NewExpenseHandlers(expenseSvc).RegisterRoutes(v1)
	handlers.NewReportHandlers(reportSvc).RegisterRoutes(v1)

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr()).Str("version", version).Str("env", cfg.AppEnv).Msg("billbook server starting")
		if err := e.Start(cfg.HTTPAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	if err := scheduler.Stop(); err != nil {
		logger.Error().Err(err).Msg("failed to stop job scheduler")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down server cleanly")
	}
}

// newMetrics builds the registry served on /metrics with runtime collectors and the service's own metrics.
func newMetrics() (*prometheus.Registry, *obs.HTTPMetrics, *obs.DomainMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry, obs.NewHTTPMetrics("billbook", nil, registry), obs.NewDomainMetrics("billbook", registry)
}
