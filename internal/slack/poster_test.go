package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/flowjudge/internal/hermes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatAnalysisMessage(t *testing.T) {
	msg := formatAnalysisMessage(hermes.AnalysisCompleted{
		ConversationID:   "conv-1",
		Title:            "Trip planning",
		TotalTurns:       4,
		HighValueRatio:   0.5,
		LowValueRatio:    0.25,
		TopicShiftsCount: 1,
		EfficiencyScore:  0.25,
		Fallbacks:        1,
		Partial:          true,
	})

	checks := []string{
		"Trip planning (conv-1)",
		"*Turns:* 4 (partial)",
		"*Efficiency:* 0.25",
		"High value: 50%",
		"Low value: 25%",
		"*Topic shifts:* 1",
		"1 turns could not be classified",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q:\n%s", check, msg)
		}
	}
}

func TestFormatAnalysisMessage_Failure(t *testing.T) {
	msg := formatAnalysisMessage(hermes.AnalysisCompleted{ConversationID: "conv-2", Error: "load export: not found"})
	if !strings.Contains(msg, "conv-2 (conv-2)") || !strings.Contains(msg, "Analysis failed: load export: not found") {
		t.Errorf("unexpected failure message %q", msg)
	}
	if strings.Contains(msg, "Efficiency") {
		t.Errorf("failure message should not carry scores: %q", msg)
	}
}

func TestPostAnalysis_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if payload["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", payload["channel"])
		}
		if _, ok := payload["blocks"]; !ok {
			t.Error("expected blocks in payload")
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostAnalysis(context.Background(), hermes.AnalysisCompleted{ConversationID: "c1", TotalTurns: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234567890.123456" {
		t.Errorf("expected ts 1234567890.123456, got %q", ts)
	}
}

func TestPostAnalysis_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	_, err := p.PostAnalysis(context.Background(), hermes.AnalysisCompleted{ConversationID: "c1"})
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}

func TestPostText_Thread(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "2.0"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	if err := p.PostText(context.Background(), "1.0", "summary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["thread_ts"] != "1.0" || payload["text"] != "summary" {
		t.Errorf("unexpected payload %v", payload)
	}

	payload = nil
	if err := p.PostText(context.Background(), "", "standalone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := payload["thread_ts"]; ok {
		t.Errorf("standalone message should not carry thread_ts: %v", payload)
	}
}
