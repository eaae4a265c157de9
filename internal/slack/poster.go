package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/flowjudge/internal/hermes"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostAnalysis posts a finished analysis summary and returns the message ts.
func (p *Poster) PostAnalysis(ctx context.Context, evt hermes.AnalysisCompleted) (string, error) {
	text := formatAnalysisMessage(evt)
	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted analysis to slack", "ts", ts, "conversation_id", evt.ConversationID)
	return ts, nil
}

// PostText posts a plain message, threaded under threadTS when it is set.
func (p *Poster) PostText(ctx context.Context, threadTS, text string) error {
	payload := map[string]any{
		"channel": p.channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	_, err := p.post(ctx, payload)
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatAnalysisMessage(evt hermes.AnalysisCompleted) string {
	var sb strings.Builder

	title := evt.Title
	if title == "" {
		title = evt.ConversationID
	}
	fmt.Fprintf(&sb, "*Conversation:* %s (%s)\n", title, evt.ConversationID)

	if evt.Error != "" && evt.TotalTurns == 0 {
		fmt.Fprintf(&sb, "_Analysis failed: %s_", evt.Error)
		return sb.String()
	}

	fmt.Fprintf(&sb, "*Turns:* %d", evt.TotalTurns)
	if evt.Partial {
		sb.WriteString(" (partial)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "*Efficiency:* %.2f | High value: %.0f%% | Low value: %.0f%%\n",
		evt.EfficiencyScore, evt.HighValueRatio*100, evt.LowValueRatio*100)
	fmt.Fprintf(&sb, "*Topic shifts:* %d\n", evt.TopicShiftsCount)
	if evt.Fallbacks > 0 {
		fmt.Fprintf(&sb, "_%d turns could not be classified_\n", evt.Fallbacks)
	}
	if evt.Error != "" {
		fmt.Fprintf(&sb, "_Error: %s_\n", evt.Error)
	}
	return sb.String()
}
