// Package main provides the entry point for the deepresearch MCP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/deepresearch-mcp/internal/config"
	"github.com/raphaelgruber/deepresearch-mcp/internal/db"
	"github.com/raphaelgruber/deepresearch-mcp/internal/engine"
	"github.com/raphaelgruber/deepresearch-mcp/internal/metrics"
	"github.com/raphaelgruber/deepresearch-mcp/internal/server"
	"github.com/raphaelgruber/deepresearch-mcp/internal/service"
	"github.com/raphaelgruber/deepresearch-mcp/internal/tools"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("deepresearch starting",
		"version", version,
		"store", cfg.Store,
		"engine_url", cfg.OpenAIBaseURL,
		"engine_timeout", cfg.EngineTimeout(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	registry, closeRegistry, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open job registry", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer closeRegistry()

	// Missing credentials only warn; tool calls then report the error.
	eng := engine.NewOpenAIClient(engine.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.EngineTimeout(),
	}, logger)

	jobs := service.NewJobManager(registry, eng, service.Options{
		Retention: cfg.JobRetention,
		Metrics:   metrics.NewCollector(),
		Logger:    logger,
	})

	srv := server.New(version, logger)
	srv.Setup()

	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{
		Jobs:   jobs,
		Logger: logger,
	})
	logger.Info("tools registered", "count", 5)

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// openRegistry builds the configured job store. The returned func releases it.
func openRegistry(ctx context.Context, cfg config.Config, logger *slog.Logger) (service.Registry, func(), error) {
	if cfg.Store != config.StoreSurrealDB {
		if cfg.Store != config.StoreMemory {
			logger.Warn("unknown RESEARCH_STORE, using memory", "store", cfg.Store)
		}
		return service.NewMemoryRegistry(), func() {}, nil
	}

	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := dbClient.InitSchema(ctx); err != nil {
		_ = dbClient.Close(ctx)
		return nil, nil, err
	}

	closeFn := func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}
	return service.NewSurrealRegistry(dbClient), closeFn, nil
}
