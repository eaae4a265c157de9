package hermes

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAnalysisRequestParsing(t *testing.T) {
	raw := `{
		"request_id": "req-001",
		"export_path": "/data/export/conversations.json",
		"conversation_id": "conv-abc"
	}`

	var req AnalysisRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to parse AnalysisRequest: %v", err)
	}

	if req.RequestID != "req-001" {
		t.Errorf("expected request_id 'req-001', got '%s'", req.RequestID)
	}
	if req.ExportPath != "/data/export/conversations.json" {
		t.Errorf("unexpected export_path '%s'", req.ExportPath)
	}
	if req.ConversationID != "conv-abc" {
		t.Errorf("expected conversation_id 'conv-abc', got '%s'", req.ConversationID)
	}
}

func TestAnalysisCompletedOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(AnalysisCompleted{ConversationID: "c1", Title: "T", TotalTurns: 3})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"error"`, `"partial"`, `"analysis_id"`, `"request_id"`} {
		if strings.Contains(s, key) {
			t.Errorf("expected %s to be omitted: %s", key, s)
		}
	}
	if !strings.Contains(s, `"efficiency_score":0`) {
		t.Errorf("efficiency_score should always be present: %s", s)
	}
}

func TestSubjects(t *testing.T) {
	for _, s := range []string{SubjectAnalysisRequested, SubjectAnalysisCompleted, SubjectRegistered} {
		if !strings.HasPrefix(s, "swarm.") || !strings.Contains(s, "flowjudge") {
			t.Errorf("unexpected subject %q", s)
		}
	}
}
