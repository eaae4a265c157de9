package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/flowjudge/internal/api"
	"github.com/MikeSquared-Agency/flowjudge/internal/hermes"
	"github.com/MikeSquared-Agency/flowjudge/internal/processor"
	"github.com/MikeSquared-Agency/flowjudge/internal/slack"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the NATS analysis worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
}

func runServe(parent context.Context) error {
	logger := slog.Default()
	logger.Info("flowjudge starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	// Interfaces stay nil when no database is configured.
	var (
		apiStore  api.AnalysisStore
		procStore processor.Persister
	)
	if db != nil {
		defer db.Close()
		apiStore, procStore = db, db
	}

	analyzer, err := newAnalyzer(logger)
	if err != nil {
		return err
	}

	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer hermesClient.Close()
	logger.Info("NATS connected", "url", cfg.NatsURL)

	proc := processor.New(ctx, analyzer, procStore, hermesClient, logger)
	if cfg.SlackEnabled() {
		proc.WithNotifier(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger))
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	}
	if err := hermesClient.Subscribe(hermes.SubjectAnalysisRequested, proc.HandleAnalysisRequested); err != nil {
		return fmt.Errorf("subscribe to analysis requests: %w", err)
	}

	srv := api.NewServer(cfg.Port, cfg.APIToken, analyzer, apiStore, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"port":        cfg.Port,
		"provider":    cfg.Provider,
		"model":       cfg.Model,
		"persistence": db != nil,
	}); err != nil {
		logger.Warn("failed to publish registration", "error", err)
	}

	logger.Info("flowjudge ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("HTTP server error", "error", err)
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	if err := hermesClient.Drain(); err != nil {
		logger.Warn("NATS drain", "error", err)
	}
	logger.Info("flowjudge stopped")
	return nil
}
