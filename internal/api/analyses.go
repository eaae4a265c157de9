package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
	"github.com/MikeSquared-Agency/flowjudge/internal/flow"
	"github.com/MikeSquared-Agency/flowjudge/internal/store"
)

// AnalyzeRequest is the body of POST /api/v1/analyses. Without a
// conversation id the conversation with the most turns is analyzed.
type AnalyzeRequest struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Export         json.RawMessage `json:"export"`
}

// AnalyzeResponse carries the analysis and, when persisted, its id.
type AnalyzeResponse struct {
	ID             *uuid.UUID     `json:"id,omitempty"`
	ConversationID string         `json:"conversation_id"`
	Analysis       *flow.Analysis `json:"analysis"`
}

// createAnalysis handles POST /api/v1/analyses
func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExportBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Export) == 0 {
		writeError(w, http.StatusBadRequest, "export is required")
		return
	}

	convs, err := s.loader.Parse(req.Export)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var conv conversation.Conversation
	if req.ConversationID != "" {
		conv, err = conversation.Find(convs, req.ConversationID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
	} else {
		var ok bool
		if conv, ok = conversation.Longest(convs); !ok {
			writeError(w, http.StatusNotFound, "export contains no conversations")
			return
		}
	}

	turns := conversation.ExtractTurns(conv)
	analysis, err := s.analyzer.Analyze(r.Context(), turns, conv.Title)
	if err != nil {
		s.logger.Warn("analysis interrupted", "conversation_id", conv.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "analysis interrupted: "+err.Error())
		return
	}

	resp := AnalyzeResponse{ConversationID: conv.ID, Analysis: analysis}
	if s.store != nil {
		id, err := s.store.WriteAnalysis(r.Context(), conv.ID, turns, analysis)
		if err != nil {
			s.logger.Error("failed to persist analysis", "conversation_id", conv.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "persist analysis failed")
			return
		}
		resp.ID = &id
	}

	writeJSON(w, http.StatusOK, resp)
}

// getAnalysis handles GET /api/v1/analyses/{id}
func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	a, err := s.store.GetAnalysis(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// listAnalyses handles GET /api/v1/analyses?conversation_id=&limit=
func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := s.store.ListAnalyses(r.Context(), r.URL.Query().Get("conversation_id"), limit)
	if err != nil {
		s.logger.Error("failed to list analyses", "error", err)
		writeError(w, http.StatusInternalServerError, "list analyses failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": list, "count": len(list)})
}
