package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested analysis does not exist.
var ErrNotFound = errors.New("analysis not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS flow_analyses (
	id                         UUID PRIMARY KEY,
	conversation_id            TEXT NOT NULL,
	title                      TEXT NOT NULL,
	total_turns                INTEGER NOT NULL,
	high_value_ratio           DOUBLE PRECISION NOT NULL,
	low_value_ratio            DOUBLE PRECISION NOT NULL,
	topic_shifts_count         INTEGER NOT NULL,
	efficiency_score           DOUBLE PRECISION NOT NULL,
	question_type_distribution JSONB NOT NULL DEFAULT '{}'::jsonb,
	partial                    BOOLEAN NOT NULL DEFAULT false,
	created_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS flow_analyses_conversation_idx ON flow_analyses (conversation_id, created_at DESC);

CREATE TABLE IF NOT EXISTS turn_classifications (
	analysis_id        UUID NOT NULL REFERENCES flow_analyses (id) ON DELETE CASCADE,
	turn_index         INTEGER NOT NULL,
	question           TEXT NOT NULL,
	question_excerpt   TEXT NOT NULL,
	question_type      TEXT NOT NULL,
	value_level        TEXT NOT NULL,
	builds_on_previous BOOLEAN NOT NULL,
	topic_shift        BOOLEAN NOT NULL,
	reason             TEXT NOT NULL,
	outcome            TEXT NOT NULL,
	PRIMARY KEY (analysis_id, turn_index)
);`

// EnsureSchema creates the analysis tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
