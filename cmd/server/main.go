package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/dropzone/internal/config"
	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/JonMunkholm/dropzone/internal/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"drop_concurrency", cfg.Ingest.DropConcurrency,
		"metrics_enabled", cfg.Metrics.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	var (
		observer core.Observer
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		obs, err := core.NewPrometheusObserver(cfg.Metrics.Namespace, reg)
		if err != nil {
			slog.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
		observer, gatherer = obs, reg
	}

	limiter := core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	uploader, err := core.NewUploader(core.UploaderConfig{
		Endpoint:  cfg.Upload.Endpoint,
		FieldName: cfg.Upload.FieldName,
		Timeout:   cfg.Upload.Timeout,
		Retry:     cfg.RetryPolicy(),
		Limiter:   limiter,
		Observer:  observer,
	})
	if err != nil {
		slog.Error("failed to create uploader", "error", err)
		os.Exit(1)
	}

	stream := core.NewResultStream(cfg.Ingest.StreamBuffer)
	notifier := core.Tee{Notifiers: []core.Notifier{core.LogNotifier{}, stream}}

	pipeline, err := core.NewPipeline(core.Options{
		Policy:            cfg.SizePolicy(),
		AllowedImageTypes: cfg.Limits.AllowedImageTypes,
		Uploader:          uploader,
		Emitter:           stream,
		Notifier:          notifier,
		Observer:          observer,
	})
	if err != nil {
		slog.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(web.Deps{
		Config:   cfg,
		Pipeline: pipeline,
		Batch:    core.NewBatch(pipeline, cfg.Ingest.DropConcurrency),
		Stream:   stream,
		Limiter:  limiter,
		Gatherer: gatherer,
	})

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		} else {
			slog.Info("shutdown complete")
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-stopped
}
