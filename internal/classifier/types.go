package classifier

import (
	"encoding/json"
	"strings"
)

// QuestionType is the kind of question a turn asks.
type QuestionType string

const (
	TypeClarifying QuestionType = "clarifying"
	TypeDeepening  QuestionType = "deepening"
	TypeEmotional  QuestionType = "emotional"
	TypeTechnical  QuestionType = "technical"
	TypeOffTopic   QuestionType = "off-topic"
	TypeUnknown    QuestionType = "unknown"
)

// ValueLevel is the coarse usefulness tier of a turn.
type ValueLevel string

const (
	ValueHigh   ValueLevel = "high"
	ValueMedium ValueLevel = "medium"
	ValueLow    ValueLevel = "low"
)

// Outcome tells whether a record holds a real classification or the fallback.
type Outcome string

const (
	OutcomeClassified Outcome = "classified"
	OutcomeFallback   Outcome = "fallback"
)

// Record is the classification of one turn.
type Record struct {
	TurnIndex        int          `json:"turn_index"`
	Question         string       `json:"question"` // excerpt, see Excerpt
	QuestionType     QuestionType `json:"question_type"`
	ValueLevel       ValueLevel   `json:"value_level"`
	BuildsOnPrevious bool         `json:"builds_on_previous"`
	TopicShift       bool         `json:"topic_shift"`
	Reason           string       `json:"reason"`
	Outcome          Outcome      `json:"outcome"`
}

// Failed reports whether the record is a fallback.
func (r Record) Failed() bool { return r.Outcome == OutcomeFallback }

// verdict is the shape the model is asked to return.
type verdict struct {
	QuestionType     *string  `json:"question_type"`
	ValueLevel       *string  `json:"value_level"`
	BuildsOnPrevious flexBool `json:"builds_on_previous"`
	TopicShift       flexBool `json:"topic_shift"`
	Reason           *string  `json:"reason"`
}

// flexBool accepts JSON booleans as well as the "true"/"yes"/1 spellings
// models tend to emit. Anything unrecognized decodes as false.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case float64:
		*b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			*b = true
		default:
			*b = false
		}
	default:
		*b = false
	}
	return nil
}

// normalizeType maps s onto the known question types. A value outside them
// becomes TypeUnknown, and the lowercased value is returned as reported.
func normalizeType(s *string) (QuestionType, string) {
	if s == nil {
		return TypeUnknown, ""
	}
	switch t := QuestionType(strings.ToLower(strings.TrimSpace(*s))); t {
	case "":
		return TypeUnknown, ""
	case TypeClarifying, TypeDeepening, TypeEmotional, TypeTechnical, TypeOffTopic, TypeUnknown:
		return t, ""
	default:
		return TypeUnknown, string(t)
	}
}

func normalizeLevel(s *string) ValueLevel {
	if s == nil {
		return ValueMedium
	}
	switch l := ValueLevel(strings.ToLower(strings.TrimSpace(*s))); l {
	case ValueHigh, ValueMedium, ValueLow:
		return l
	default:
		return ValueMedium
	}
}
