package backfill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
	"github.com/MikeSquared-Agency/flowjudge/internal/flow"
)

// Analyzer runs the flow analysis of a conversation's turns.
type Analyzer interface {
	Analyze(ctx context.Context, turns []conversation.Turn, title string) (*flow.Analysis, error)
}

// Persister stores finished analyses.
type Persister interface {
	WriteAnalysis(ctx context.Context, conversationID string, turns []conversation.Turn, a *flow.Analysis) (uuid.UUID, error)
}

// Notifier receives the backfill report, e.g. a Slack channel.
type Notifier interface {
	PostText(ctx context.Context, threadTS, text string) error
}

// Runner orchestrates the backfill process.
type Runner struct {
	cfg      Config
	analyzer Analyzer
	store    Persister
	out      io.Writer
	notifier Notifier
	logger   *slog.Logger
}

// NewRunner creates a backfill runner. store may be nil, in which case
// nothing is persisted. The final report is written to out.
func NewRunner(cfg Config, analyzer Analyzer, store Persister, out io.Writer, logger *slog.Logger) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		cfg:      cfg,
		analyzer: analyzer,
		store:    store,
		out:      out,
		logger:   logger,
	}
}

// WithNotifier sets where the batch summary is posted.
func (r *Runner) WithNotifier(n Notifier) *Runner {
	r.notifier = n
	return r
}

// Run analyzes every pending conversation of the export. State is saved after
// each conversation, and on cancellation before returning ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if state.ExportPath == "" {
		state.ExportPath = r.cfg.ExportPath
	}

	convs, err := conversation.NewLoader(r.logger).LoadFile(expandHome(r.cfg.ExportPath))
	if err != nil {
		return fmt.Errorf("load export: %w", err)
	}

	type pending struct {
		conv  conversation.Conversation
		turns []conversation.Turn
	}
	var todo []pending
	for _, c := range convs {
		if state.IsProcessed(c.ID) {
			continue
		}
		if !r.inDateRange(c.CreatedAt) {
			continue
		}
		turns := conversation.ExtractTurns(c)
		if len(turns) == 0 || len(turns) < r.cfg.MinTurns {
			continue
		}
		todo = append(todo, pending{conv: c, turns: turns})
	}

	state.ConversationsRemaining = len(todo)
	r.logger.Info("conversations to analyze",
		"total", len(convs),
		"pending", len(todo),
		"already_processed", len(state.ConversationsProcessed),
	)

	var summaries []ConversationSummary
	inBatch := 0
	for _, p := range todo {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			_ = state.Save()
			r.postSummary(summaries)
			return ctx.Err()
		default:
		}

		r.logger.Info("analyzing conversation", "conversation_id", p.conv.ID, "turns", len(p.turns))

		cs := ConversationSummary{ID: p.conv.ID, Title: p.conv.Title}
		if !p.conv.CreatedAt.IsZero() {
			cs.Date = p.conv.CreatedAt.UTC().Format("2006-01-02")
		}

		analysis, err := r.analyzer.Analyze(ctx, p.turns, p.conv.Title)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("backfill interrupted, saving state", "conversation_id", p.conv.ID)
				_ = state.Save()
				r.postSummary(summaries)
				return ctx.Err()
			}
			r.logger.Error("analysis failed", "conversation_id", p.conv.ID, "error", err)
			state.AddError(fmt.Sprintf("analyze %s: %v", p.conv.ID, err))
			continue
		}

		if !r.cfg.DryRun && r.store != nil {
			if _, err := r.store.WriteAnalysis(ctx, p.conv.ID, p.turns, analysis); err != nil {
				r.logger.Error("persist failed", "conversation_id", p.conv.ID, "error", err)
				state.AddError(fmt.Sprintf("persist %s: %v", p.conv.ID, err))
				cs.Errors++
				summaries = append(summaries, cs)
				continue
			}
		}

		cs.Turns = analysis.TotalTurns
		cs.Efficiency = analysis.FlowSummary.EfficiencyScore
		cs.Fallbacks = analysis.Fallbacks()
		summaries = append(summaries, cs)

		state.TurnsClassified += analysis.TotalTurns
		state.Fallbacks += cs.Fallbacks
		state.MarkProcessed(p.conv.ID)
		state.ConversationsRemaining--
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save state", "path", state.Path(), "error", err)
		}

		r.logger.Info("conversation analyzed",
			"conversation_id", p.conv.ID,
			"efficiency_score", cs.Efficiency,
			"fallbacks", cs.Fallbacks,
			"dry_run", r.cfg.DryRun,
		)

		inBatch++
		if r.cfg.BatchSize > 0 && inBatch >= r.cfg.BatchSize && r.cfg.BatchPause > 0 {
			r.logger.Info("batch complete, pausing", "conversations_in_batch", inBatch, "pause", r.cfg.BatchPause)
			inBatch = 0
			select {
			case <-ctx.Done():
				r.logger.Info("backfill interrupted during pause, saving state")
				_ = state.Save()
				r.postSummary(summaries)
				return ctx.Err()
			case <-time.After(r.cfg.BatchPause):
			}
		}
	}

	_ = state.Save()

	r.logger.Info("backfill complete",
		"conversations_analyzed", len(summaries),
		"turns_classified", state.TurnsClassified,
		"errors", len(state.Errors),
		"dry_run", r.cfg.DryRun,
	)

	r.postSummary(summaries)
	fmt.Fprint(r.out, FormatDailySummary(summaries))
	fmt.Fprintf(r.out, "\nConversations analyzed: %d\n", len(summaries))
	fmt.Fprintf(r.out, "Errors: %d\n", len(state.Errors))
	if r.cfg.DryRun {
		fmt.Fprintf(r.out, "Mode: DRY RUN (no DB writes)\n")
	}
	fmt.Fprintf(r.out, "State file: %s\n", state.Path())
	return nil
}

// postSummary sends the report to the notifier, falling back to the log.
// It uses its own context so an interrupted run is still reported.
func (r *Runner) postSummary(summaries []ConversationSummary) {
	if len(summaries) == 0 {
		return
	}
	text := FormatDailySummary(summaries)
	if r.notifier == nil {
		r.logger.Info("backfill summary (no notifier configured)", "summary", text)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := r.notifier.PostText(ctx, "", text); err != nil {
		r.logger.Warn("failed to post backfill summary, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatDailySummary formats conversation summaries grouped by creation date.
func FormatDailySummary(summaries []ConversationSummary) string {
	if len(summaries) == 0 {
		return ""
	}
	byDate := make(map[string][]ConversationSummary)
	for _, s := range summaries {
		date := s.Date
		if date == "" {
			date = "unknown"
		}
		byDate[date] = append(byDate[date], s)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("=== Backfill Summary ===\n")

	for _, date := range dates {
		convs := byDate[date]
		turns := 0
		for _, c := range convs {
			turns += c.Turns
		}
		fmt.Fprintf(&sb, "\n%s (%d conversations, %d turns)\n", date, len(convs), turns)
		for _, c := range convs {
			fmt.Fprintf(&sb, "  - %s [%s]: %d turns, efficiency %.2f", c.Title, c.ID, c.Turns, c.Efficiency)
			if c.Fallbacks > 0 {
				fmt.Fprintf(&sb, ", %d fallbacks", c.Fallbacks)
			}
			if c.Errors > 0 {
				fmt.Fprintf(&sb, " (%d errors)", c.Errors)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (r *Runner) inDateRange(t time.Time) bool {
	if r.cfg.Since.IsZero() && r.cfg.Until.IsZero() {
		return true
	}
	if t.IsZero() {
		return false
	}
	if !r.cfg.Since.IsZero() && t.Before(r.cfg.Since) {
		return false
	}
	if !r.cfg.Until.IsZero() && t.After(r.cfg.Until) {
		return false
	}
	return true
}
