package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/flowjudge/internal/classifier"
	"github.com/MikeSquared-Agency/flowjudge/internal/config"
	"github.com/MikeSquared-Agency/flowjudge/internal/flow"
	"github.com/MikeSquared-Agency/flowjudge/internal/llm"
	"github.com/MikeSquared-Agency/flowjudge/internal/store"
)

// Flag defaults come from the environment, so cfg is loaded before init runs.
var cfg = config.Load()

var rootCmd = &cobra.Command{
	Use:   "flowjudge",
	Short: "Judge the question flow of exported chat conversations",
	Long: `flowjudge rebuilds conversations from a chat export, classifies every
question/answer turn with an LLM and scores how efficiently the conversation
moved toward something useful.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cfg.LogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&cfg.Workers, "workers", cfg.Workers, "turns classified concurrently")
	rootCmd.PersistentFlags().IntVar(&cfg.ContextWindow, "context-window", cfg.ContextWindow, "preceding turns shown to the model")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newAnalyzer wires the completion provider, the turn classifier and the
// flow analyzer from the loaded configuration.
func newAnalyzer(logger *slog.Logger) (*flow.Analyzer, error) {
	completer, err := llm.New(cfg.LLM())
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	logger.Info("llm provider ready", "provider", cfg.Provider, "model", cfg.Model)

	c := classifier.New(completer, logger, classifier.Options{
		ContextWindow: cfg.ContextWindow,
		SchemaHint:    cfg.JSONMode,
	})
	return flow.NewAnalyzer(c, cfg.Workers, logger), nil
}

// openStore connects to Postgres and ensures the schema. It returns nil
// without error when DATABASE_URL is not set.
func openStore(ctx context.Context, logger *slog.Logger) (*store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, analyses will not be persisted")
		return nil, nil
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("database connected")
	return db, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
