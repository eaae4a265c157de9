package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
	"github.com/MikeSquared-Agency/flowjudge/internal/flow"
	"github.com/MikeSquared-Agency/flowjudge/internal/hermes"
)

const notifyTimeout = 15 * time.Second

// Analyzer runs the flow analysis of a conversation's turns.
type Analyzer interface {
	Analyze(ctx context.Context, turns []conversation.Turn, title string) (*flow.Analysis, error)
}

// Persister stores finished analyses.
type Persister interface {
	WriteAnalysis(ctx context.Context, conversationID string, turns []conversation.Turn, a *flow.Analysis) (uuid.UUID, error)
}

// Publisher emits events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier posts analysis summaries for humans, e.g. to Slack.
type Notifier interface {
	PostAnalysis(ctx context.Context, evt hermes.AnalysisCompleted) (string, error)
}

// Processor turns analysis requests into persisted analyses and completion events.
type Processor struct {
	ctx      context.Context
	loader   *conversation.Loader
	analyzer Analyzer
	store    Persister
	pub      Publisher
	notifier Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{} // keyed by export path + conversation id
}

// New returns a processor. ctx bounds every analysis started from a NATS
// message. store and pub may be nil.
func New(ctx context.Context, analyzer Analyzer, store Persister, pub Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		ctx:      ctx,
		loader:   conversation.NewLoader(logger),
		analyzer: analyzer,
		store:    store,
		pub:      pub,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// WithNotifier sets an optional notifier for completed analyses.
func (p *Processor) WithNotifier(n Notifier) *Processor {
	p.notifier = n
	return p
}

// HandleAnalysisRequested is the NATS handler for swarm.flowjudge.analysis.requested.
func (p *Processor) HandleAnalysisRequested(subject string, data []byte) {
	var req hermes.AnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("failed to parse analysis request", "subject", subject, "error", err)
		return
	}
	if req.ExportPath == "" {
		p.logger.Warn("analysis request without export path", "request_id", req.RequestID)
		return
	}

	key := req.ExportPath + "\x00" + req.ConversationID
	p.mu.Lock()
	if _, busy := p.inFlight[key]; busy {
		p.mu.Unlock()
		p.logger.Info("analysis already in progress, skipping duplicate", "export_path", req.ExportPath, "conversation_id", req.ConversationID)
		return
	}
	p.inFlight[key] = struct{}{}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inFlight, key)
		p.mu.Unlock()
	}()

	events, err := p.Process(p.ctx, req)
	if err != nil {
		p.logger.Error("analysis request failed",
			"request_id", req.RequestID,
			"export_path", req.ExportPath,
			"error", err,
		)
		// Failures after a conversation was picked are already reported.
		if len(events) > 0 {
			return
		}
		p.publish(hermes.AnalysisCompleted{
			RequestID:      req.RequestID,
			ConversationID: req.ConversationID,
			Error:          err.Error(),
		})
	}
}

// Process analyzes the requested conversation, or every conversation of the
// export when no id is given, and returns one completion event per
// conversation. Conversations without turns are skipped.
func (p *Processor) Process(ctx context.Context, req hermes.AnalysisRequest) ([]hermes.AnalysisCompleted, error) {
	convs, err := p.loader.LoadFile(req.ExportPath)
	if err != nil {
		return nil, fmt.Errorf("load export: %w", err)
	}

	if req.ConversationID != "" {
		c, err := conversation.Find(convs, req.ConversationID)
		if err != nil {
			return nil, err
		}
		convs = []conversation.Conversation{c}
	}

	p.logger.Info("processing analysis request",
		"request_id", req.RequestID,
		"export_path", req.ExportPath,
		"conversations", len(convs),
	)

	var events []hermes.AnalysisCompleted
	for _, c := range convs {
		turns := conversation.ExtractTurns(c)
		if len(turns) == 0 {
			p.logger.Debug("skipping conversation without turns", "conversation_id", c.ID)
			continue
		}

		analysis, err := p.analyzer.Analyze(ctx, turns, c.Title)
		evt := completedEvent(req.RequestID, c.ID, analysis)
		if err != nil {
			evt.Error = err.Error()
			p.publish(evt)
			return append(events, evt), fmt.Errorf("analyze %s: %w", c.ID, err)
		}

		if p.store != nil {
			id, err := p.store.WriteAnalysis(ctx, c.ID, turns, analysis)
			if err != nil {
				p.logger.Error("persistence failed", "conversation_id", c.ID, "error", err)
				evt.Error = "persist: " + err.Error()
			} else {
				evt.AnalysisID = id.String()
			}
		}

		p.publish(evt)
		events = append(events, evt)
	}
	return events, nil
}

func completedEvent(requestID, conversationID string, a *flow.Analysis) hermes.AnalysisCompleted {
	evt := hermes.AnalysisCompleted{RequestID: requestID, ConversationID: conversationID}
	if a == nil {
		return evt
	}
	fs := a.FlowSummary
	evt.Title = a.ConversationTitle
	evt.TotalTurns = fs.TotalTurns
	evt.HighValueRatio = fs.HighValueRatio
	evt.LowValueRatio = fs.LowValueRatio
	evt.TopicShiftsCount = fs.TopicShiftsCount
	evt.EfficiencyScore = fs.EfficiencyScore
	evt.Fallbacks = a.Fallbacks()
	evt.Partial = a.Partial
	return evt
}

func (p *Processor) publish(evt hermes.AnalysisCompleted) {
	if p.pub != nil {
		if err := p.pub.Publish(hermes.SubjectAnalysisCompleted, evt); err != nil {
			p.logger.Warn("failed to publish analysis event", "conversation_id", evt.ConversationID, "error", err)
		}
	}
	if p.notifier != nil {
		// Posted on a fresh context so interrupted analyses are still reported.
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if _, err := p.notifier.PostAnalysis(ctx, evt); err != nil {
			p.logger.Warn("failed to post analysis summary", "conversation_id", evt.ConversationID, "error", err)
		}
	}
}
