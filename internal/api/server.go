package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
	"github.com/MikeSquared-Agency/flowjudge/internal/flow"
	"github.com/MikeSquared-Agency/flowjudge/internal/store"
)

const maxExportBytes = 64 << 20

// FlowAnalyzer runs the flow analysis of a conversation's turns.
type FlowAnalyzer interface {
	Analyze(ctx context.Context, turns []conversation.Turn, title string) (*flow.Analysis, error)
}

// AnalysisStore persists and reads analyses.
type AnalysisStore interface {
	WriteAnalysis(ctx context.Context, conversationID string, turns []conversation.Turn, a *flow.Analysis) (uuid.UUID, error)
	GetAnalysis(ctx context.Context, id uuid.UUID) (*store.StoredAnalysis, error)
	ListAnalyses(ctx context.Context, conversationID string, limit int) ([]store.AnalysisSummary, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	httpSrv  *http.Server
	analyzer FlowAnalyzer
	store    AnalysisStore
	loader   *conversation.Loader
	logger   *slog.Logger
}

// NewServer builds the HTTP API. st may be nil, in which case analyses are
// returned but not persisted and the read endpoints answer 503.
func NewServer(port int, apiToken string, analyzer FlowAnalyzer, st AnalysisStore, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		analyzer: analyzer,
		store:    st,
		loader:   conversation.NewLoader(logger),
		logger:   logger,
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/flowjudge/status", s.status)

	router.Route("/api/v1/analyses", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/", s.createAnalysis)
		r.Get("/", s.listAnalyses)
		r.Get("/{id}", s.getAnalysis)
	})

	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":       "flowjudge",
		"status":      "ready",
		"persistence": s.store != nil,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
