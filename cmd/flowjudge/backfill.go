package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/flowjudge/internal/backfill"
	"github.com/MikeSquared-Agency/flowjudge/internal/slack"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Analyze every conversation of an export and persist the results",
	Long: `Backfill walks all conversations of an export, skipping the ones already
recorded in the state file, so an interrupted run can be resumed.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	f := backfillCmd.Flags()
	f.StringP("export", "e", "conversations.json", "path to the conversation export")
	f.String("state", backfill.DefaultStatePath, "progress state file")
	f.Int("min-turns", 1, "skip conversations with fewer turns")
	f.Bool("dry-run", false, "analyze without writing to the database")
	f.Int("batch-size", 0, "pause after this many conversations (0 disables)")
	f.Duration("batch-pause", 30*time.Second, "pause between batches")
	f.String("since", "", "only conversations created on or after this date (YYYY-MM-DD)")
	f.String("until", "", "only conversations created before this date (YYYY-MM-DD)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	var bc backfill.Config
	bc.ExportPath, _ = f.GetString("export")
	bc.StatePath, _ = f.GetString("state")
	bc.MinTurns, _ = f.GetInt("min-turns")
	bc.DryRun, _ = f.GetBool("dry-run")
	bc.BatchSize, _ = f.GetInt("batch-size")
	bc.BatchPause, _ = f.GetDuration("batch-pause")

	var err error
	if bc.Since, err = parseDate(f, "since"); err != nil {
		return err
	}
	if bc.Until, err = parseDate(f, "until"); err != nil {
		return err
	}

	logger := slog.Default()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var persister backfill.Persister
	if !bc.DryRun {
		db, err := openStore(ctx, logger)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
			persister = db
		}
	}

	analyzer, err := newAnalyzer(logger)
	if err != nil {
		return err
	}

	logger.Info("starting backfill",
		"export", bc.ExportPath,
		"state", bc.StatePath,
		"min_turns", bc.MinTurns,
		"dry_run", bc.DryRun,
	)
	runner := backfill.NewRunner(bc, analyzer, persister, cmd.OutOrStdout(), logger)
	if cfg.SlackEnabled() {
		runner.WithNotifier(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger))
	}
	return runner.Run(ctx)
}

type flagGetter interface {
	GetString(name string) (string, error)
}

func parseDate(f flagGetter, name string) (time.Time, error) {
	v, _ := f.GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}
