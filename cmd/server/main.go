package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appfiscal "github.com/mxsuite/backend/internal/application/fiscal"
	appsat "github.com/mxsuite/backend/internal/application/sat"
	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/infrastructure/cache"
	"github.com/mxsuite/backend/internal/infrastructure/config"
	"github.com/mxsuite/backend/internal/infrastructure/event"
	"github.com/mxsuite/backend/internal/infrastructure/logger"
	"github.com/mxsuite/backend/internal/infrastructure/persistence"
	"github.com/mxsuite/backend/internal/infrastructure/satws"
	"github.com/mxsuite/backend/internal/infrastructure/scheduler"
	"github.com/mxsuite/backend/internal/infrastructure/storage"
	"github.com/mxsuite/backend/internal/infrastructure/telemetry"
	"github.com/mxsuite/backend/internal/interfaces/http/handler"
	"github.com/mxsuite/backend/internal/interfaces/http/middleware"
	"github.com/mxsuite/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting MXSuite Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	requestRepo := persistence.NewGormDownloadRequestRepository(db.DB)
	stagingRepo := persistence.NewGormStagedDocumentRepository(db.DB)
	documentRepo := persistence.NewGormFiscalDocumentRepository(db.DB)

	// Initialize telemetry
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("mxsuite.sat.sync"))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Job lease store: Redis in normal deployments, in-memory when Redis
	// is unreachable (single-node development setups)
	var leaseStore sat.JobLeaseStore
	redisLeases, err := cache.NewRedisJobLeaseStore(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-memory job leases",
			zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		leaseStore = cache.NewInMemoryJobLeaseStore()
	} else {
		defer func() {
			if err := redisLeases.Close(); err != nil {
				log.Error("Error closing Redis connection", zap.Error(err))
			}
		}()
		leaseStore = redisLeases
		log.Info("Redis job lease store connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Payload archive for the raw XML audit trail
	var archive sat.PayloadArchive
	switch cfg.Storage.Provider {
	case "s3":
		s3Archive, err := storage.NewS3PayloadArchive(&cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to create S3 payload archive", zap.Error(err))
		}
		if err := s3Archive.EnsureBucket(context.Background()); err != nil {
			log.Fatal("Failed to ensure archive bucket", zap.Error(err))
		}
		archive = s3Archive
		log.Info("S3 payload archive ready", zap.String("bucket", cfg.Storage.Bucket))
	default:
		fileArchive, err := storage.NewFilePayloadArchive(cfg.Storage.LocalPath)
		if err != nil {
			log.Fatal("Failed to create file payload archive", zap.Error(err))
		}
		archive = fileArchive
		log.Info("File payload archive ready", zap.String("path", cfg.Storage.LocalPath))
	}

	// Fiscal credentials and the bulk download web service client
	credentials := satws.NewFileCredentialProvider(
		cfg.Sat.RFC,
		cfg.Sat.CertificatePath,
		cfg.Sat.PrivateKeyPath,
		cfg.Sat.Passphrase,
	)
	satClient, err := satws.NewClient(&satws.Config{
		BaseURL:        cfg.Sat.BaseURL,
		RFC:            cfg.Sat.RFC,
		RequestTimeout: cfg.Sat.RequestTimeout,
	}, credentials, log)
	if err != nil {
		log.Fatal("Failed to create download service client", zap.Error(err))
	}

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)
	activityHandler := appsat.NewSyncActivityHandler(log)
	eventBus.Subscribe(activityHandler)
	log.Info("Event handlers registered",
		zap.Strings("sync_activity_events", activityHandler.EventTypes()),
	)

	// Sync executor runs the download protocol under per-request leases
	executor := appsat.NewSyncExecutor(
		requestRepo,
		stagingRepo,
		satClient,
		credentials,
		leaseStore,
		archive,
		sat.DefaultRetryPolicy(),
		eventBus,
		syncMetrics,
		log,
	)

	// Sync scheduler and retry poller
	syncScheduler, err := scheduler.NewSyncScheduler(scheduler.Config{
		Workers:    cfg.Scheduler.Workers,
		QueueSize:  cfg.Scheduler.QueueSize,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, executor, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncScheduler.Stop(stopCtx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}()
	log.Info("Sync scheduler started",
		zap.Int("workers", cfg.Scheduler.Workers),
		zap.Duration("job_timeout", cfg.Scheduler.JobTimeout),
	)

	if cfg.Scheduler.Enabled {
		retryPoller := scheduler.NewRetryPoller(
			requestRepo,
			syncScheduler,
			cfg.Scheduler.RetryPollInterval,
			cfg.Scheduler.RetryBatchSize,
			log,
		)
		if err := retryPoller.Start(context.Background()); err != nil {
			log.Fatal("Failed to start retry poller", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := retryPoller.Stop(stopCtx); err != nil {
				log.Error("Error stopping retry poller", zap.Error(err))
			}
		}()
		log.Info("Retry poller started",
			zap.Duration("interval", cfg.Scheduler.RetryPollInterval),
			zap.Int("batch_size", cfg.Scheduler.RetryBatchSize),
		)
	}

	// Initialize application services
	downloadService := appsat.NewDownloadService(requestRepo, stagingRepo, syncScheduler, eventBus, cfg.Sat.WindowDays)
	importService := appsat.NewImportService(requestRepo, stagingRepo, documentRepo, eventBus, log)
	documentService := appfiscal.NewDocumentService(documentRepo)

	// Initialize HTTP handlers
	downloadHandler := handler.NewDownloadHandler(downloadService, importService)
	documentHandler := handler.NewDocumentHandler(documentService)
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack: request ID first so recovery and logging can tag
	// their entries with it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check endpoint outside API versioning for load balancers
	engine.GET("/health", systemHandler.Health)

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(downloadHandler).
		Register(documentHandler).
		Register(systemHandler)
	r.Setup()

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
