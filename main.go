package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videoarchive/config"
	"videoarchive/internal/handler"
	"videoarchive/internal/mirror"
	"videoarchive/internal/model"
	"videoarchive/internal/service"
	"videoarchive/internal/source"
	"videoarchive/internal/storage"
	"videoarchive/pkg/console"
	"videoarchive/pkg/logger"
	"videoarchive/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	mode := flag.String("mode", "run", `"run" archives every registered owner once, "serve" exposes the archive over HTTP`)
	envFile := flag.String("env", "", "path to an env file loaded instead of ./.env")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting videoarchive",
		zap.String("mode", *mode),
		zap.String("archive_dir", cfg.Storage.BaseDir))

	if cfg.Logging.Dir != "" {
		logger.CleanupLogs(cfg.Logging.Dir, time.Duration(cfg.Logging.RetentionDays)*24*time.Hour)
	}

	store := storage.NewManager(cfg.Storage)
	if err := store.EnsureBaseDir(); err != nil {
		logger.Logger.Fatal("Failed to create archive directory", zap.Error(err))
	}
	store.CleanupStale()

	registry, err := source.BuildRegistry(cfg.Source, cfg.Download)
	if err != nil {
		logger.Logger.Fatal("Invalid owner registry", zap.Error(err))
	}

	downloadService := service.NewDownloadService(cfg.Download, store, setupMirror(cfg.Mirror), os.Stdout)
	archiveService := service.NewArchiveService(
		registry,
		service.NewExtractService(cfg.Download.MaxScanDepth),
		service.NewSelectionService(),
		downloadService,
		store,
		cfg.Download.OwnerDelaySeconds,
		os.Stdout,
	)

	var code int
	switch *mode {
	case "run":
		code = runArchive(archiveService)
	case "serve":
		code = serve(cfg, store, archiveService)
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q (want \"run\" or \"serve\")\n", *mode)
		code = 2
	}

	logger.Sync()
	os.Exit(code)
}

// setupMirror builds the S3 mirror when one is configured. A mirror that
// cannot be reached disables mirroring for this process instead of
// aborting; the archive itself never depends on the mirror.
func setupMirror(cfg model.MirrorConfig) mirror.Mirror {
	if !cfg.Enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s3Mirror, err := mirror.NewS3Mirror(ctx, cfg)
	if err == nil {
		err = s3Mirror.Verify(ctx)
	}
	if err != nil {
		logger.Logger.Warn("Mirror unavailable, continuing without it",
			zap.String("bucket", cfg.Bucket),
			zap.Error(err))
		return nil
	}

	logger.Logger.Info("Mirror enabled",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.PathPrefix))
	return s3Mirror
}

// runArchive performs one pass over every registered owner and renders the
// summary table. The exit code is non-zero when the run could not start or
// when any owner's source errored.
func runArchive(archiveService *service.ArchiveService) int {
	summary, err := archiveService.Run(context.Background())
	if err != nil {
		logger.Logger.Error("Archive run aborted", zap.Error(err))
		fmt.Fprintf(os.Stderr, "archive run: %v\n", err)
		return 1
	}

	console.RenderSummary(os.Stdout, summary)

	if summary.Failed() {
		return 1
	}
	return 0
}

func serve(cfg *model.Config, store *storage.Manager, archiveService *service.ArchiveService) int {
	quotaService := service.NewQuotaService(cfg.Quota)
	defer quotaService.Stop()
	rateLimitService := service.NewRateLimitService(cfg.RateLimit)
	defer rateLimitService.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(rateLimitService))
		logger.Logger.Info("Rate limiting enabled",
			zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute),
			zap.Int("burst_size", cfg.RateLimit.BurstSize))
	}
	if cfg.Quota.Enabled {
		logger.Logger.Info("Streaming quota enabled",
			zap.Int64("daily_limit_mb", cfg.Quota.DailyLimitMB))
	}

	archiveHandler := handler.NewArchiveHandler(archiveService, quotaService)
	libraryHandler := handler.NewLibraryHandler(store, quotaService)

	router.GET("/health", archiveHandler.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/owners", libraryHandler.ListOwners)
		api.GET("/owners/:owner/videos", libraryHandler.ListVideos)
		api.GET("/owners/:owner/videos/:filename",
			middleware.QuotaCheckMiddleware(quotaService), libraryHandler.StreamVideo)
		api.POST("/archive/run", archiveHandler.TriggerRun)
		api.GET("/quota", archiveHandler.GetQuota)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
		// No WriteTimeout: streaming a large archive file can
		// legitimately take minutes.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Logger.Info("Archive server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.Timeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shut down", zap.Error(err))
		return 1
	}

	logger.Logger.Info("Server stopped")
	return 0
}
