package conversation

// ExtractTurns pairs the conversation's messages into question/answer turns.
func ExtractTurns(c Conversation) []Turn {
	return PairTurns(c.Messages)
}

// PairTurns emits a turn for every user message immediately followed by an
// assistant message. Unpaired messages are stepped over one at a time; the
// scan never looks past the next message for an answer.
func PairTurns(msgs []Message) []Turn {
	var turns []Turn
	for i := 0; i < len(msgs)-1; {
		q, a := msgs[i], msgs[i+1]
		if q.Role != RoleUser || a.Role != RoleAssistant {
			i++
			continue
		}
		turns = append(turns, Turn{
			Question:  q.Content,
			Answer:    a.Content,
			Index:     len(turns) + 1,
			Timestamp: q.CreatedAt,
		})
		i += 2
	}
	return turns
}

// QAPairs returns the conversation's turns as evaluator input/output pairs.
func QAPairs(c Conversation) []QAPair {
	turns := ExtractTurns(c)
	pairs := make([]QAPair, len(turns))
	for i, t := range turns {
		pairs[i] = QAPair{
			Input:             t.Question,
			ActualOutput:      t.Answer,
			ConversationID:    c.ID,
			ConversationTitle: c.Title,
		}
	}
	return pairs
}
