package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	allocationapp "github.com/dealflow/backend/internal/application/allocation"
	calendarapp "github.com/dealflow/backend/internal/application/calendar"
	integrityapp "github.com/dealflow/backend/internal/application/integrity"
	pipelineapp "github.com/dealflow/backend/internal/application/pipeline"
	"github.com/dealflow/backend/internal/application/query"
	schedulingapp "github.com/dealflow/backend/internal/application/scheduling"
	"github.com/dealflow/backend/internal/infrastructure/cache"
	"github.com/dealflow/backend/internal/infrastructure/config"
	"github.com/dealflow/backend/internal/infrastructure/event"
	"github.com/dealflow/backend/internal/infrastructure/logger"
	"github.com/dealflow/backend/internal/infrastructure/persistence"
	"github.com/dealflow/backend/internal/infrastructure/telemetry"
	"github.com/dealflow/backend/internal/interfaces/http/handler"
	"github.com/dealflow/backend/internal/interfaces/http/middleware"
	"github.com/dealflow/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/dealflow/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			DealFlow Backend API
//	@version		1.0
//	@description	Fund allocation and capital call reconciliation engine for venture fund back offices.
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/dealflow/backend
//	@contact.email	support@dealflow.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting DealFlow Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry providers (traces, metrics, logs, profiles). Each provider
	// degrades to a no-op when disabled, so the wiring below is unconditional.
	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Bridge application logs to the OTEL collector alongside stdout
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore, zap.AddCaller())
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingAddress,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Link spans to profiles so slow traces can be drilled into
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database query tracing and pool metrics
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	// Initialize repositories
	fundRepo := persistence.NewGormFundRepository(db.DB)
	dealRepo := persistence.NewGormDealRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	callRepo := persistence.NewGormCapitalCallRepository(db.DB)
	closingRepo := persistence.NewGormClosingEventRepository(db.DB)
	meetingRepo := persistence.NewGormMeetingRepository(db.DB)

	// Calendar feed cache (Redis with in-memory fallback)
	cacheFactory := cache.NewFeedCacheFactory(cfg.Redis, cache.WithLogger(log))
	feedCache, err := cacheFactory.CreateCache()
	if err != nil {
		log.Fatal("Failed to create calendar feed cache", zap.Error(err))
	}

	// Initialize application services
	allocationService := allocationapp.NewAllocationService(allocationRepo, callRepo, dealRepo, fundRepo)
	paymentService := allocationapp.NewPaymentService(allocationRepo, callRepo,
		allocationapp.WithPaymentMaxRetries(cfg.Engine.PaymentMaxRetries),
		allocationapp.WithOverpaymentsAllowed(cfg.Engine.AllowOverpayments),
		allocationapp.WithDefaultPaymentMethod(cfg.Engine.DefaultPaymentMethod),
	)
	callService := allocationapp.NewCapitalCallService(allocationRepo, callRepo,
		allocationapp.WithCallLeadDays(cfg.Engine.CallLeadDays),
		allocationapp.WithSettlementOverpaymentsAllowed(cfg.Engine.AllowOverpayments),
		allocationapp.WithSettlementPaymentMethod(cfg.Engine.DefaultPaymentMethod),
	)
	fundService := pipelineapp.NewFundService(fundRepo, allocationRepo)
	dealService := pipelineapp.NewDealService(dealRepo)
	closingService := schedulingapp.NewClosingEventService(closingRepo, dealRepo)
	meetingService := schedulingapp.NewMeetingService(meetingRepo, dealRepo)

	batchService := query.NewBatchService(allocationRepo, dealRepo, fundRepo,
		query.WithBatchChunkSize(cfg.Engine.BatchChunkSize),
	)
	integrityService := integrityapp.NewService(allocationRepo, callRepo, batchService,
		integrityapp.WithScanChunkSize(cfg.Engine.BatchChunkSize),
		integrityapp.WithRepairMaxRetries(cfg.Engine.PaymentMaxRetries),
		integrityapp.WithOverpaymentsAllowed(cfg.Engine.AllowOverpayments),
	)
	calendarService := calendarapp.NewService(callRepo, closingRepo, meetingRepo, batchService,
		calendarapp.WithFeedCache(feedCache),
		calendarapp.WithCacheTTL(cfg.Engine.CalendarCacheTTL),
		calendarapp.WithLogger(log),
	)

	// Business metrics: payment activity counters plus a periodic ledger
	// drift gauge fed by the integrity scanner
	allocationMetrics, err := telemetry.NewAllocationMetrics(telemetry.AllocationMetricsConfig{
		Meter:  meterProvider.Meter("dealflow.allocation"),
		Logger: log,
		DriftProvider: telemetry.LedgerDriftProviderFunc(func(ctx context.Context) (int64, error) {
			report, err := integrityService.VerifyAllAllocations(ctx)
			if err != nil {
				return 0, err
			}
			return int64(len(report.InvalidAllocations)), nil
		}),
	})
	if err != nil {
		log.Warn("Failed to initialize allocation metrics", zap.Error(err))
	} else if meterProvider.IsEnabled() {
		allocationMetrics.StartPeriodicCollection(ctx, 5*time.Minute)
		defer allocationMetrics.Stop()
	}

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Audit trail: every domain event is logged
	auditHandler := event.NewAuditLogHandler(log)
	eventBus.Subscribe(auditHandler)

	// Payment and scheduling activity invalidates cached calendar feeds
	invalidationHandler := calendarapp.NewCacheInvalidationHandler(feedCache, allocationRepo, log)
	eventBus.Subscribe(invalidationHandler)

	log.Info("Event handlers registered",
		zap.Strings("cache_invalidation_events", invalidationHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	allocationService.SetEventPublisher(eventBus)
	paymentService.SetEventPublisher(eventBus)
	callService.SetEventPublisher(eventBus)
	fundService.SetEventPublisher(eventBus)
	dealService.SetEventPublisher(eventBus)
	closingService.SetEventPublisher(eventBus)
	meetingService.SetEventPublisher(eventBus)

	// Publish failures are non-fatal but must be visible
	allocationService.SetLogger(log)
	paymentService.SetLogger(log)
	callService.SetLogger(log)
	fundService.SetLogger(log)
	dealService.SetLogger(log)
	closingService.SetLogger(log)
	meetingService.SetLogger(log)

	// Initialize HTTP handlers
	fundHandler := handler.NewFundHandler(fundService)
	dealHandler := handler.NewDealHandler(dealService, allocationService)
	allocationHandler := handler.NewAllocationHandler(allocationService, paymentService)
	callHandler := handler.NewCapitalCallHandler(callService)
	integrityHandler := handler.NewIntegrityHandler(integrityService)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	closingHandler := handler.NewClosingEventHandler(closingService)
	meetingHandler := handler.NewMeetingHandler(meetingService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - OpenTelemetry span per request
	// 5. Metrics - RED metrics per route
	// 6. Profiling - pprof labels per request
	// 7. Security - Add security headers
	// 8. CORS - Handle cross-origin requests
	// 9. BodyLimit - Limit request body size
	// 10. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetricsWithMeter(
		meterProvider.Meter("dealflow.http"),
		meterProvider.IsEnabled(),
	))
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}

	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoints (outside API versioning)
	engine.GET("/health", healthHandler(db))
	engine.GET("/health/ready", healthHandler(db))

	// Swagger documentation endpoint, gated by config and IP whitelist
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	router.RegisterAll(r, router.Handlers{
		Fund:        fundHandler,
		Deal:        dealHandler,
		Allocation:  allocationHandler,
		CapitalCall: callHandler,
		Integrity:   integrityHandler,
		Calendar:    calendarHandler,
		Closing:     closingHandler,
		Meeting:     meetingHandler,
		System:      systemHandler,
	})
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
