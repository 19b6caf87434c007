package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmreyes/idextract/internal/common"
	"github.com/dmreyes/idextract/internal/export"
	"github.com/dmreyes/idextract/internal/extract"
	"github.com/dmreyes/idextract/internal/job"
	"github.com/dmreyes/idextract/internal/llm/openai"
	"github.com/dmreyes/idextract/internal/pipeline"
)

var (
	processFile string
	processOut  string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single document synchronously",
	Long: `Process runs one local file through the full pipeline and prints the
extraction result as JSON. With --out the result is also written as an
XLSX workbook.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processFile, "file", "", "document to process (required)")
	processCmd.Flags().StringVar(&processOut, "out", "", "write the result workbook to this XLSX path")
	_ = processCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := common.ApplyConfigFile(cfg, cfgFile); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	info, err := os.Stat(processFile)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	store := job.NewMemStore(logger)
	defer store.Close()

	stages := []pipeline.Stage{
		pipeline.NewIngestionStage(cfg.Upload, logger),
		pipeline.NewExtractionStage(extract.NewVisionClient(cfg.OCR, logger), logger),
		pipeline.NewCleaningStage(logger),
		pipeline.NewFieldExtractionStage(openai.NewClient(cfg.LLM, logger), logger),
	}
	pipe := pipeline.New(store, stages, logger)

	rec, err := store.Create(job.DocumentInfo{
		Path:      processFile,
		Filename:  filepath.Base(processFile),
		SizeBytes: info.Size(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scheduler.JobTimeout)
	defer cancel()
	runErr := pipe.Run(ctx, rec.ID)

	final, err := store.Get(rec.ID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("processing failed: %w", runErr)
	}

	if processOut != "" {
		data, err := export.NewService(logger).ExportJobXLSX(final)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := os.WriteFile(processOut, data, 0o644); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		fmt.Fprintf(os.Stderr, "workbook written to %s\n", processOut)
	}
	return nil
}
