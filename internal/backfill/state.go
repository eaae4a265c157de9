package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// DefaultStatePath is where progress is kept between runs.
const DefaultStatePath = "~/.flowjudge/backfill-state.json"

// BackfillState tracks progress for resumable backfill runs.
type BackfillState struct {
	StartedAt              time.Time `json:"started_at"`
	LastProcessedAt        time.Time `json:"last_processed_at"`
	ExportPath             string    `json:"export_path"`
	ConversationsProcessed []string  `json:"conversations_processed"`
	ConversationsRemaining int       `json:"conversations_remaining"`
	TurnsClassified        int       `json:"turns_classified"`
	Fallbacks              int       `json:"fallbacks"`
	Errors                 []string  `json:"errors"`

	path string // not serialized
}

// LoadState loads the backfill state at path, or creates a new one when the
// file does not exist. An empty path uses DefaultStatePath.
func LoadState(path string) (*BackfillState, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &BackfillState{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s BackfillState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Path returns the file the state is saved to.
func (s *BackfillState) Path() string { return s.path }

// Save persists the state to disk.
func (s *BackfillState) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed reports whether the conversation has already been analyzed.
func (s *BackfillState) IsProcessed(conversationID string) bool {
	return slices.Contains(s.ConversationsProcessed, conversationID)
}

// MarkProcessed records a conversation as analyzed.
func (s *BackfillState) MarkProcessed(conversationID string) {
	s.ConversationsProcessed = append(s.ConversationsProcessed, conversationID)
}

// AddError records a processing error.
func (s *BackfillState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
