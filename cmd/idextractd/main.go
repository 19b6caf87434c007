package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmreyes/idextract/internal/common"
	"github.com/dmreyes/idextract/internal/export"
	"github.com/dmreyes/idextract/internal/extract"
	"github.com/dmreyes/idextract/internal/job"
	"github.com/dmreyes/idextract/internal/llm/openai"
	"github.com/dmreyes/idextract/internal/pipeline"
	"github.com/dmreyes/idextract/internal/scheduler"
	"github.com/dmreyes/idextract/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := common.ApplyConfigFile(cfg, os.Getenv("IDEXTRACT_CONFIG")); err != nil {
		logger.Error("failed to load config file", "error", err)
		os.Exit(1)
	}
	if cfg.OCR.APIKey == "" {
		logger.Error("VISION_API_KEY env var is required")
		os.Exit(2)
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := job.NewMemStore(logger, job.WithRetention(cfg.Store.Retention))
	defer store.Close()

	vision := extract.NewVisionClient(cfg.OCR, logger)
	llmClient := openai.NewClient(cfg.LLM, logger)

	stages := []pipeline.Stage{
		pipeline.NewIngestionStage(cfg.Upload, logger),
		pipeline.NewExtractionStage(vision, logger),
		pipeline.NewCleaningStage(logger),
		pipeline.NewFieldExtractionStage(llmClient, logger),
	}
	pipe := pipeline.New(store, stages, logger, pipeline.WithUploadCleanup(true))

	sched := scheduler.New(pipe, logger,
		scheduler.WithWorkers(cfg.Scheduler.Workers),
		scheduler.WithQueueSize(cfg.Scheduler.QueueSize),
		scheduler.WithJobTimeout(cfg.Scheduler.JobTimeout),
	)

	exporter := export.NewService(logger)
	api := server.New(store, sched, exporter, cfg.Upload, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: api.Router(),
	}

	logger.Info("idextractd listening", "addr", cfg.Server.HTTPAddr, "workers", cfg.Scheduler.Workers)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown interrupted", "error", err)
	}
	sched.Shutdown(shutdownCtx)
}
