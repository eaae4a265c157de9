package flow

import (
	"github.com/MikeSquared-Agency/flowjudge/internal/classifier"
	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
)

// Summarize computes flow statistics over records. Ratios and the efficiency
// score are zero when there are no records.
func Summarize(records []classifier.Record) Summary {
	s := Summary{
		TotalTurns:               len(records),
		QuestionTypeDistribution: make(map[string]int),
	}
	var high, low int
	for _, r := range records {
		switch r.ValueLevel {
		case classifier.ValueHigh:
			high++
		case classifier.ValueLow:
			low++
		}
		if r.TopicShift {
			s.TopicShiftsCount++
		}
		s.QuestionTypeDistribution[string(r.QuestionType)]++
	}
	if s.TotalTurns == 0 {
		return s
	}
	total := float64(s.TotalTurns)
	s.HighValueRatio = float64(high) / total
	s.LowValueRatio = float64(low) / total
	s.EfficiencyScore = float64(high-low) / total
	return s
}

// Aggregate builds the analysis from records paired positionally with turns.
// Bucket entries carry the full question text of the source turn.
func Aggregate(turns []conversation.Turn, records []classifier.Record, title string) *Analysis {
	a := &Analysis{
		ConversationTitle: title,
		TotalTurns:        len(records),
		TurnAnalysis:      records,
		HighValueTurns:    []BucketEntry{},
		LowValueTurns:     []BucketEntry{},
		TopicShifts:       []TopicShift{},
		Partial:           len(records) < len(turns),
	}
	if a.TurnAnalysis == nil {
		a.TurnAnalysis = []classifier.Record{}
	}

	for i, r := range records {
		question := r.Question
		if i < len(turns) {
			question = turns[i].Question
		}

		entry := BucketEntry{
			TurnIndex: r.TurnIndex,
			Question:  question,
			Type:      r.QuestionType,
			Reason:    r.Reason,
		}
		switch r.ValueLevel {
		case classifier.ValueHigh:
			a.HighValueTurns = append(a.HighValueTurns, entry)
		case classifier.ValueLow:
			a.LowValueTurns = append(a.LowValueTurns, entry)
		}
		if r.TopicShift {
			a.TopicShifts = append(a.TopicShifts, TopicShift{TurnIndex: r.TurnIndex, Question: question})
		}
	}

	a.FlowSummary = Summarize(records)
	return a
}
