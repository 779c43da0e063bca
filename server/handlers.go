package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/engine"
	"github.com/becomeliminal/nim-reality/reality"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Sessions: s.sessions.Len(),
		})
	}
}

func (s *Server) handleTurn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req core.TurnRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		out, err := s.engine.Run(r.Context(), &engine.Input{
			UserID: req.UserID,
			Text:   req.InputText,
		})
		if err != nil {
			s.writeTurnError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out.Response())
	}
}

// startSessionRequest is the optional body of POST /v1/sessions.
type startSessionRequest struct {
	UserID string `json:"user_id"`
}

// SessionSummary describes a newly started session.
type SessionSummary struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	StartedAt    time.Time `json:"started_at"`
	SystemPrompt string    `json:"system_prompt"`
}

func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionRequest
		if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		sess := s.sessions.Start(req.UserID)
		s.logger.Info("session started", zap.String("session", sess.ID()), zap.String("owner", sess.OwnerID()))
		writeJSON(w, http.StatusCreated, SessionSummary{
			ID:           sess.ID(),
			OwnerID:      sess.OwnerID(),
			StartedAt:    sess.StartedAt(),
			SystemPrompt: s.engine.SystemPrompt(),
		})
	}
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) handleEndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.End(chi.URLParam(r, "id")) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// sessionTurnRequest is the body of a turn within a session.
type sessionTurnRequest struct {
	InputText string `json:"input_text"`
}

func (s *Server) handleSessionTurn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		var req sessionTurnRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		out, err := s.engine.Run(r.Context(), &engine.Input{
			Text:    req.InputText,
			Session: sess,
		})
		if err != nil {
			s.writeTurnError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out.Response())
	}
}

// HistoryResponse lists an owner's stored realities.
type HistoryResponse struct {
	UserID    string           `json:"user_id"`
	Realities []reality.Record `json:"realities"`
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		records, err := s.engine.Memory().History(r.Context(), userID, limit)
		if err != nil {
			s.writeTurnError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, HistoryResponse{UserID: userID, Realities: records})
	}
}
