package hermes

const (
	// SubjectAnalysisRequested carries AnalysisRequest payloads.
	SubjectAnalysisRequested = "swarm.flowjudge.analysis.requested"
	// SubjectAnalysisCompleted carries AnalysisCompleted payloads.
	SubjectAnalysisCompleted = "swarm.flowjudge.analysis.completed"
	// SubjectRegistered announces the service on startup.
	SubjectRegistered = "swarm.agent.flowjudge.registered"
)

// AnalysisRequest asks for the flow analysis of an export file. An empty
// ConversationID analyzes every conversation in the export.
type AnalysisRequest struct {
	RequestID      string `json:"request_id,omitempty"`
	ExportPath     string `json:"export_path"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AnalysisCompleted reports one finished conversation analysis.
type AnalysisCompleted struct {
	RequestID        string  `json:"request_id,omitempty"`
	AnalysisID       string  `json:"analysis_id,omitempty"`
	ConversationID   string  `json:"conversation_id"`
	Title            string  `json:"title"`
	TotalTurns       int     `json:"total_turns"`
	HighValueRatio   float64 `json:"high_value_ratio"`
	LowValueRatio    float64 `json:"low_value_ratio"`
	TopicShiftsCount int     `json:"topic_shifts_count"`
	EfficiencyScore  float64 `json:"efficiency_score"`
	Fallbacks        int     `json:"fallbacks"`
	Partial          bool    `json:"partial,omitempty"`
	Error            string  `json:"error,omitempty"`
}
