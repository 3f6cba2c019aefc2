package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"duoaccount/internal/backend"
	"duoaccount/internal/cli"
	"duoaccount/internal/log"
	gsheet "duoaccount/internal/sheets/google"
	"duoaccount/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting duo-mirror-worker")

	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the mirror worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend selected, the worker will only mirror its own empty store")
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	mirror, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	var seed []string
	if cfg.DuoID != "" {
		seed = append(seed, cfg.DuoID)
	}
	w := worker.NewMirrorWorker(res.Store, mirror, logger, seed...)

	if err := w.MirrorAll(ctx); err != nil {
		logger.Error("Startup mirror failed", log.FieldError, err)
	}

	if res.Events != nil {
		go func() {
			if err := res.Events.Run(ctx, res.Events.Consume, w.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change event consumption stopped", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP disabled, mirroring on the sync interval only")
	}

	if err := w.Run(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror worker failed", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
