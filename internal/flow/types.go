package flow

import "github.com/MikeSquared-Agency/flowjudge/internal/classifier"

// Summary holds conversation-level flow statistics.
type Summary struct {
	TotalTurns               int            `json:"total_turns"`
	HighValueRatio           float64        `json:"high_value_ratio"`
	LowValueRatio            float64        `json:"low_value_ratio"`
	TopicShiftsCount         int            `json:"topic_shifts_count"`
	QuestionTypeDistribution map[string]int `json:"question_type_distribution"`
	EfficiencyScore          float64        `json:"efficiency_score"`
}

// BucketEntry is a turn listed in the high- or low-value bucket.
type BucketEntry struct {
	TurnIndex int                     `json:"turn_index"`
	Question  string                  `json:"question"`
	Type      classifier.QuestionType `json:"type"`
	Reason    string                  `json:"reason"`
}

// TopicShift is a turn flagged as changing the subject.
type TopicShift struct {
	TurnIndex int    `json:"turn_index"`
	Question  string `json:"question"`
}

// Analysis is the full flow analysis of one conversation.
type Analysis struct {
	ConversationTitle string              `json:"conversation_title"`
	TotalTurns        int                 `json:"total_turns"`
	TurnAnalysis      []classifier.Record `json:"turn_analysis"`
	HighValueTurns    []BucketEntry       `json:"high_value_turns"`
	LowValueTurns     []BucketEntry       `json:"low_value_turns"`
	TopicShifts       []TopicShift        `json:"topic_shifts"`
	FlowSummary       Summary             `json:"flow_summary"`
	// Partial is set when classification stopped before every turn was seen.
	Partial bool `json:"partial,omitempty"`
}

// Fallbacks counts records that hold a fallback classification.
func (a *Analysis) Fallbacks() int {
	n := 0
	for _, r := range a.TurnAnalysis {
		if r.Failed() {
			n++
		}
	}
	return n
}
