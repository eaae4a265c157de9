package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/flowjudge/internal/classifier"
	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
	"github.com/MikeSquared-Agency/flowjudge/internal/flow"
)

// StoredAnalysis is a persisted flow analysis.
type StoredAnalysis struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID string         `json:"conversation_id"`
	CreatedAt      time.Time      `json:"created_at"`
	Analysis       *flow.Analysis `json:"analysis"`
}

// AnalysisSummary is a list entry without per-turn detail.
type AnalysisSummary struct {
	ID              uuid.UUID `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	Title           string    `json:"title"`
	TotalTurns      int       `json:"total_turns"`
	EfficiencyScore float64   `json:"efficiency_score"`
	Partial         bool      `json:"partial"`
	CreatedAt       time.Time `json:"created_at"`
}

// WriteAnalysis persists an analysis and its turn classifications in one transaction.
// turns supplies the full question text for each record.
func (s *Store) WriteAnalysis(ctx context.Context, conversationID string, turns []conversation.Turn, a *flow.Analysis) (uuid.UUID, error) {
	dist, err := json.Marshal(a.FlowSummary.QuestionTypeDistribution)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal distribution: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	fs := a.FlowSummary
	_, err = tx.Exec(ctx, `
		INSERT INTO flow_analyses (id, conversation_id, title, total_turns, high_value_ratio, low_value_ratio,
			topic_shifts_count, efficiency_score, question_type_distribution, partial, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		id, conversationID, a.ConversationTitle, fs.TotalTurns, fs.HighValueRatio, fs.LowValueRatio,
		fs.TopicShiftsCount, fs.EfficiencyScore, string(dist), a.Partial,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert analysis: %w", err)
	}

	for i, r := range a.TurnAnalysis {
		question := r.Question
		if i < len(turns) {
			question = turns[i].Question
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO turn_classifications (analysis_id, turn_index, question, question_excerpt, question_type,
				value_level, builds_on_previous, topic_shift, reason, outcome)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, r.TurnIndex, question, r.Question, string(r.QuestionType),
			string(r.ValueLevel), r.BuildsOnPrevious, r.TopicShift, r.Reason, string(r.Outcome),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert turn %d: %w", r.TurnIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetAnalysis loads an analysis by id. Buckets and the summary are rebuilt
// from the stored turn classifications.
func (s *Store) GetAnalysis(ctx context.Context, id uuid.UUID) (*StoredAnalysis, error) {
	var (
		out     = StoredAnalysis{ID: id}
		title   string
		partial bool
	)
	err := s.pool.QueryRow(ctx, `
		SELECT conversation_id, title, partial, created_at
		FROM flow_analyses WHERE id = $1`, id,
	).Scan(&out.ConversationID, &title, &partial, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT turn_index, question, question_excerpt, question_type, value_level,
			builds_on_previous, topic_shift, reason, outcome
		FROM turn_classifications WHERE analysis_id = $1
		ORDER BY turn_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var (
		turns   []conversation.Turn
		records []classifier.Record
	)
	for rows.Next() {
		var (
			r        classifier.Record
			question string
			qt       string
			vl       string
			outcome  string
		)
		if err := rows.Scan(&r.TurnIndex, &question, &r.Question, &qt, &vl,
			&r.BuildsOnPrevious, &r.TopicShift, &r.Reason, &outcome); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		r.QuestionType = classifier.QuestionType(qt)
		r.ValueLevel = classifier.ValueLevel(vl)
		r.Outcome = classifier.Outcome(outcome)
		records = append(records, r)
		turns = append(turns, conversation.Turn{Question: question, Index: r.TurnIndex})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	out.Analysis = flow.Aggregate(turns, records, title)
	out.Analysis.Partial = partial
	return &out, nil
}

// ListAnalyses returns the newest analyses first, optionally filtered by conversation.
func (s *Store) ListAnalyses(ctx context.Context, conversationID string, limit int) ([]AnalysisSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, title, total_turns, efficiency_score, partial, created_at
		FROM flow_analyses
		WHERE ($1 = '' OR conversation_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []AnalysisSummary{}
	for rows.Next() {
		var a AnalysisSummary
		if err := rows.Scan(&a.ID, &a.ConversationID, &a.Title, &a.TotalTurns, &a.EfficiencyScore, &a.Partial, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
