package conversation

import "time"

// Role is the author role of a reconstructed message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single resolved message on the primary path of a conversation tree.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Conversation is one exported conversation with its reconstructed message sequence.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// Turn is one user question paired with the assistant answer that directly follows it.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Index     int       `json:"turn_index"` // 1-based
	Timestamp time.Time `json:"timestamp"`
}

// QAPair is the input/output view of a turn handed to external evaluators.
type QAPair struct {
	Input             string `json:"input"`
	ActualOutput      string `json:"actual_output"`
	ConversationID    string `json:"conversation_id"`
	ConversationTitle string `json:"conversation_title"`
}
