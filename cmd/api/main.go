package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"sales-insights/internal/artifacts"
	"sales-insights/internal/config"
	"sales-insights/internal/middleware"
	"sales-insights/internal/observability"
	"sales-insights/internal/server"
	"sales-insights/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting api server",
		"sqlite_path", cfg.Data.SQLitePath,
		"processed_dir", cfg.Data.ProcessedDir,
	)

	// The serving cache is lazy: the first request that needs it triggers
	// the one-time artifact load.
	artifactStore := artifacts.NewStore(cfg.Data)
	provider := services.NewCacheProvider(artifactStore, logger)

	srv := server.NewServer(provider, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      middlewareChain(srv),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down serving cache")
		return nil
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("api server stopped gracefully")
}
