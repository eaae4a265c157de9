package flow

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/flowjudge/internal/classifier"
	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
)

// TurnClassifier labels a single turn. *classifier.Classifier implements it.
type TurnClassifier interface {
	Classify(ctx context.Context, turn conversation.Turn, preceding []conversation.Turn) classifier.Record
}

// Analyzer classifies every turn of a conversation and aggregates the result.
type Analyzer struct {
	classifier TurnClassifier
	workers    int
	logger     *slog.Logger
}

// NewAnalyzer returns an analyzer. workers > 1 classifies turns concurrently
// with at most that many calls in flight; records keep turn order either way.
func NewAnalyzer(c TurnClassifier, workers int, logger *slog.Logger) *Analyzer {
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{classifier: c, workers: workers, logger: logger}
}

// Analyze classifies turns and aggregates them under title. When ctx is
// canceled it stops issuing classifications and returns the analysis of the
// turns classified so far together with ctx.Err().
func (a *Analyzer) Analyze(ctx context.Context, turns []conversation.Turn, title string) (*Analysis, error) {
	start := time.Now()
	a.logger.Info("analyzing conversation flow",
		"title", title,
		"turns", len(turns),
		"workers", a.workers,
	)

	var records []classifier.Record
	if a.workers == 1 || len(turns) < 2 {
		records = a.classifySequential(ctx, turns)
	} else {
		records = a.classifyConcurrent(ctx, turns)
	}

	analysis := Aggregate(turns, records, title)
	if analysis.Partial {
		a.logger.Warn("flow analysis interrupted",
			"title", title,
			"classified", len(records),
			"turns", len(turns),
		)
		if err := ctx.Err(); err != nil {
			return analysis, err
		}
	}

	a.logger.Info("flow analysis complete",
		"title", title,
		"turns", analysis.TotalTurns,
		"fallbacks", analysis.Fallbacks(),
		"efficiency_score", analysis.FlowSummary.EfficiencyScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return analysis, nil
}

func (a *Analyzer) classifySequential(ctx context.Context, turns []conversation.Turn) []classifier.Record {
	records := make([]classifier.Record, 0, len(turns))
	for i, t := range turns {
		if ctx.Err() != nil {
			break
		}
		a.logger.Debug("classifying turn", "turn", i+1, "of", len(turns))
		rec := a.classifier.Classify(ctx, t, turns[:i])
		if rec.Failed() && ctx.Err() != nil {
			break // interrupted, not a real failure of this turn
		}
		records = append(records, rec)
	}
	return records
}

// classifyConcurrent fills index-tagged slots from a bounded pool and returns
// the longest fully classified prefix, so records always line up with turns.
func (a *Analyzer) classifyConcurrent(ctx context.Context, turns []conversation.Turn) []classifier.Record {
	slots := make([]classifier.Record, len(turns))
	done := make([]bool, len(turns))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, t := range turns {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec := a.classifier.Classify(ctx, t, turns[:i])
			if rec.Failed() && ctx.Err() != nil {
				return nil
			}
			slots[i] = rec
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for n < len(done) && done[n] {
		n++
	}
	return slots[:n]
}
