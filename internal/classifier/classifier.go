package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
	"github.com/MikeSquared-Agency/flowjudge/internal/llm"
	"github.com/MikeSquared-Agency/flowjudge/internal/llmjson"
)

const (
	// DefaultContextWindow is the number of preceding turns rendered into each prompt.
	DefaultContextWindow = 2

	excerptLen = 100
)

var turnSchema = &llm.Schema{Name: "turn_classification"}

// Options tune a Classifier. The zero value matches the default behavior.
type Options struct {
	// ContextWindow bounds how many preceding turns are shown to the model.
	// Zero or negative selects DefaultContextWindow.
	ContextWindow int
	// SchemaHint asks the provider for JSON output (system instruction and
	// JSON mode, where supported).
	SchemaHint bool
}

// Classifier labels turns through a completion provider.
type Classifier struct {
	llm    llm.Completer
	logger *slog.Logger
	window int
	hint   *llm.Schema
}

func New(completer llm.Completer, logger *slog.Logger, opts Options) *Classifier {
	c := &Classifier{
		llm:    completer,
		logger: logger,
		window: opts.ContextWindow,
	}
	if c.window <= 0 {
		c.window = DefaultContextWindow
	}
	if opts.SchemaHint {
		c.hint = turnSchema
	}
	return c
}

// ContextWindow returns the effective number of preceding turns per prompt.
func (c *Classifier) ContextWindow() int { return c.window }

// Classify labels turn given the turns that came before it. It always returns
// a record: any failure yields a fallback record carrying the error in Reason.
func (c *Classifier) Classify(ctx context.Context, turn conversation.Turn, preceding []conversation.Turn) Record {
	prompt := c.Prompt(turn, preceding)

	raw, err := c.llm.Complete(ctx, prompt, c.hint)
	if err != nil {
		return c.fallback(turn, err)
	}

	var v verdict
	if err := llmjson.Decode(raw, &v); err != nil {
		return c.fallback(turn, err)
	}

	qtype, reported := normalizeType(v.QuestionType)
	rec := Record{
		TurnIndex:        turn.Index,
		Question:         Excerpt(turn.Question),
		QuestionType:     qtype,
		ValueLevel:       normalizeLevel(v.ValueLevel),
		BuildsOnPrevious: bool(v.BuildsOnPrevious),
		TopicShift:       bool(v.TopicShift),
		Outcome:          OutcomeClassified,
	}
	if v.Reason != nil {
		rec.Reason = *v.Reason
	}
	if reported != "" {
		note := "reported type: " + reported
		if rec.Reason == "" {
			rec.Reason = note
		} else {
			rec.Reason += " (" + note + ")"
		}
	}

	c.logger.Debug("turn classified",
		"turn_index", rec.TurnIndex,
		"question_type", rec.QuestionType,
		"value_level", rec.ValueLevel,
	)
	return rec
}

// Prompt renders the classification prompt for turn. Only the last
// ContextWindow preceding turns are included.
func (c *Classifier) Prompt(turn conversation.Turn, preceding []conversation.Turn) string {
	if len(preceding) > c.window {
		preceding = preceding[len(preceding)-c.window:]
	}

	history := firstTurnMarker
	if len(preceding) > 0 {
		blocks := make([]string, len(preceding))
		for i, t := range preceding {
			blocks[i] = fmt.Sprintf(contextBlock, i+1, t.Question, i+1, t.Answer)
		}
		history = contextHeader + strings.Join(blocks, "\n\n")
	}
	return fmt.Sprintf(classificationPrompt, history, turn.Question)
}

func (c *Classifier) fallback(turn conversation.Turn, err error) Record {
	c.logger.Warn("turn classification failed",
		"turn_index", turn.Index,
		"kind", errorKind(err),
		"error", err,
	)
	return Record{
		TurnIndex:    turn.Index,
		Question:     Excerpt(turn.Question),
		QuestionType: TypeUnknown,
		ValueLevel:   ValueMedium,
		Reason:       fmt.Sprintf("classification failed: %v", err),
		Outcome:      OutcomeFallback,
	}
}

func errorKind(err error) string {
	var parseErr *llmjson.ParseError
	var complErr *llm.CompletionError
	switch {
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &complErr):
		return "completion"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// Excerpt bounds a question for display: the first 100 characters plus an
// ellipsis when it is longer.
func Excerpt(q string) string {
	if utf8.RuneCountInString(q) <= excerptLen {
		return q
	}
	return string([]rune(q)[:excerptLen]) + "..."
}
