package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

var (
	// ErrNotFound is returned when an export file or a requested conversation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDataFormat is returned when an export or one of its records has the wrong shape.
	ErrDataFormat = errors.New("invalid data format")
)

const untitled = "Untitled"

type rawConversation struct {
	ID         string   `json:"id"`
	Title      *string  `json:"title"`
	CreateTime *float64 `json:"create_time"`
	Mapping    Mapping  `json:"mapping"`
}

// Loader reads conversation exports.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadFile reads and parses an export file such as conversations.json.
func (l *Loader) LoadFile(path string) ([]Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("export %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read export: %w", err)
	}
	return l.Parse(data)
}

// Parse decodes an export payload. The payload must be a JSON list of
// conversation records; records that fail to parse are logged and skipped,
// and conversations without any resolved message are dropped.
func (l *Loader) Parse(data []byte) ([]Conversation, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: export must be a list of conversations: %v", ErrDataFormat, err)
	}

	convs := make([]Conversation, 0, len(records))
	for i, rec := range records {
		conv, err := ParseConversation(rec)
		if err != nil {
			l.logger.Warn("skipping conversation record",
				"conversation_index", i,
				"error", err,
			)
			continue
		}
		if len(conv.Messages) == 0 {
			continue
		}
		convs = append(convs, conv)
	}

	l.logger.Debug("export parsed",
		"records", len(records),
		"conversations", len(convs),
	)
	return convs, nil
}

// ParseConversation decodes a single conversation record and reconstructs its messages.
func ParseConversation(data []byte) (Conversation, error) {
	var raw rawConversation
	if err := json.Unmarshal(data, &raw); err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrDataFormat, err)
	}

	msgs, err := Reconstruct(raw.Mapping)
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation %q: %w", raw.ID, err)
	}

	title := untitled
	if raw.Title != nil {
		title = *raw.Title
	}
	return Conversation{
		ID:        raw.ID,
		Title:     title,
		CreatedAt: epochTime(raw.CreateTime),
		Messages:  msgs,
	}, nil
}

// Find returns the conversation with the given id.
func Find(convs []Conversation, id string) (Conversation, error) {
	for _, c := range convs {
		if c.ID == id {
			return c, nil
		}
	}
	return Conversation{}, fmt.Errorf("conversation %q: %w", id, ErrNotFound)
}

// Longest returns the conversation with the most turns, the first one on ties.
func Longest(convs []Conversation) (Conversation, bool) {
	best, bestTurns := -1, -1
	for i, c := range convs {
		if n := len(ExtractTurns(c)); n > bestTurns {
			best, bestTurns = i, n
		}
	}
	if best < 0 {
		return Conversation{}, false
	}
	return convs[best], true
}
