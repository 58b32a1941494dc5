package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"consolida/internal/cache"
	"consolida/internal/cli"
	"consolida/internal/config"
	"consolida/internal/core"
	apphttp "consolida/internal/http"
	"consolida/internal/log"
	"consolida/internal/middleware/ratelimit"
	"consolida/internal/services"
	"consolida/internal/upload"
)

// version is set at build time.
var version = "dev"

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)
	cfg = cli.LoadAndValidateConfig(logger)

	store := cli.InitBackend(context.Background(), logger, cfg)
	naming := core.Naming(cfg.MonthNames)

	reports := services.NewReportService(store.Backend, services.ReportConfig{
		Naming:           naming,
		ExcludeMemo:      cfg.ExcludeMemoMarker,
		FetchConcurrency: cfg.FetchConcurrency,
		StoreTimeout:     cfg.StoreTimeout,
		CacheTTL:         cfg.CacheTTL,
	}, logger)
	uploads := services.NewUploadService(store.Backend, reports, naming, cfg.ExcludeMemoMarker, cfg.StoreTimeout, logger)

	caches := cache.NewManager(logger)
	for _, c := range reports.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Reports:   reports,
		Uploads:   uploads,
		Parser:    upload.NewParser(upload.Columns(cfg.UploadColumns)),
		Store:     store.Backend,
		Naming:    naming,
		MaxUpload: cfg.UploadMaxBytes,
		RateLimit: ratelimit.DefaultConfig(),
		Logger:    logger,
		Version:   version,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting consolida server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"month_names", cfg.MonthNames,
		"version", version)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
