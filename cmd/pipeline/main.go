package main

import (
	"context"
	"log/slog"
	"os"

	"sales-insights/internal/artifacts"
	"sales-insights/internal/config"
	"sales-insights/internal/forecast"
	"sales-insights/internal/observability"
	"sales-insights/internal/pipeline"
	"sales-insights/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting pipeline run",
		"sqlite_path", cfg.Data.SQLitePath,
		"processed_dir", cfg.Data.ProcessedDir,
		"models_dir", cfg.Data.ModelsDir,
	)

	db, err := store.Open(cfg.Data.SQLitePath)
	if err != nil {
		logger.Error("failed to open source database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	loader := store.NewLoader(db, store.NewTableCache(), logger)
	artifactStore := artifacts.NewStore(cfg.Data)
	modelCfg := forecast.Config{
		Trees:        cfg.Model.Trees,
		MinLeaf:      cfg.Model.MinLeaf,
		Seed:         cfg.Model.Seed,
		TestFraction: cfg.Model.TestFraction,
	}

	run := pipeline.New(loader, artifactStore, modelCfg, logger)
	if err := run.Run(context.Background()); err != nil {
		logger.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}
