// Package cli provides the command-line interface for deepresearch.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/deepresearch-mcp/internal/config"
	"github.com/raphaelgruber/deepresearch-mcp/internal/db"
	"github.com/raphaelgruber/deepresearch-mcp/internal/engine"
	"github.com/raphaelgruber/deepresearch-mcp/internal/service"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, db client and job manager
	cfg         config.Config
	dbClient    *db.Client
	jobs        *service.JobManager
	closeLogger func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "deepresearch",
	Short: "Run OpenAI deep-research jobs from the shell",
	Long: `Deepresearch starts long-running deep-research jobs, tracks them in SurrealDB
and prints their reports with citations once they finish.

Jobs are shared with the deepresearch-mcp server when it runs with
RESEARCH_STORE=surrealdb, so a job started by an assistant can be inspected here.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger := setupLogger()

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		eng := engine.NewOpenAIClient(engine.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.EngineTimeout(),
		}, logger)

		jobs = service.NewJobManager(service.NewSurrealRegistry(dbClient), eng, service.Options{
			Retention: cfg.JobRetention,
			Logger:    logger,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// setupLogger logs to the log file, and to stderr as well with --verbose.
func setupLogger() *slog.Logger {
	if verbose {
		var logger *slog.Logger
		logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		return logger
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return config.SetupLoggerWithWriters(io.Discard, io.Discard, cfg.LogLevel)
	}
	closeLogger = f.Close
	return config.SetupLoggerWithWriters(io.Discard, f, cfg.LogLevel)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr as well as the log file")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(watchCmd)
}
