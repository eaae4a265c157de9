//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PubSub(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	ctx := context.Background()
	logger := slog.Default()

	client, err := NewClient(ctx, natsURL, os.Getenv("NATS_TOKEN"), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan AnalysisRequest, 1)

	err = client.Subscribe("swarm.flowjudge.test.>", func(subject string, data []byte) {
		var req AnalysisRequest
		json.Unmarshal(data, &req)
		received <- req
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	err = client.Publish("swarm.flowjudge.test.ping", AnalysisRequest{
		ExportPath:     "/tmp/conversations.json",
		ConversationID: "integration",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case req := <-received:
		if req.ConversationID != "integration" || req.ExportPath != "/tmp/conversations.json" {
			t.Errorf("unexpected request %+v", req)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
