// Package api provides HTTP handlers for the loan status agent endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ruthvika-mohan/loan-status-agent/internal/flow"
	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// chatHandler processes one caller turn. An empty session_id starts a new
// call and the generated id is echoed back for subsequent turns.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		slog.Debug("Server.chatHandler: new session started", "session_id", sessionID)
	}

	// A panicking turn must not take the server down; the caller gets the
	// apology and the session is left as the last committed turn wrote it.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Server.chatHandler: recovered from panic in turn handling", "panic", rec, "session_id", sessionID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error(flow.ApologyReply))
		}
	}()

	var resp models.ChatResponse
	s.sessions.Update(sessionID, func(sess *models.Session) bool {
		reply, err := s.turns.HandleTurn(r.Context(), req.Message, sess)
		if err == nil {
			resp = models.ChatResponse{SessionID: sessionID, Response: reply, Ended: sess.Ended, State: sess.State}
			return true
		}

		var collab *flow.CollaboratorError
		if errors.As(err, &collab) && collab.Terminal {
			// A failed call-ending action still ends the call; retrying the
			// goodbye forever helps nobody.
			slog.Error("Server.chatHandler: call-ending action failed, ending call", "error", err, "session_id", sessionID)
			sess.Ended = true
			resp = models.ChatResponse{SessionID: sessionID, Response: flow.ApologyReply + "\n" + flow.CallEndedReply, Ended: true, State: sess.State}
			return true
		}

		// Any other collaborator failure: apologize and discard this turn's
		// session changes so the caller can simply repeat themselves.
		slog.Error("Server.chatHandler: turn failed, discarding session changes", "error", err, "session_id", sessionID)
		resp = models.ChatResponse{SessionID: sessionID, Response: flow.ApologyReply, Ended: false, State: sess.State}
		return false
	})

	s.recordTurn(sessionID, req.Message, resp)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// recordTurn appends the turn to the transcript store. Recording is best
// effort; a storage failure never affects the caller's reply.
func (s *Server) recordTurn(sessionID, utterance string, resp models.ChatResponse) {
	if s.st == nil {
		return
	}
	rec := models.TurnRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Utterance: utterance,
		Reply:     resp.Response,
		State:     resp.State,
		Ended:     resp.Ended,
		Time:      time.Now().UTC(),
	}
	if err := s.st.AddTurn(rec); err != nil {
		slog.Warn("Server.recordTurn: failed to record transcript turn", "error", err, "session_id", sessionID)
	}
}

// resetHandler discards a session so the same id can start a fresh call.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.resetHandler: processing reset request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.resetHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.resetHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		slog.Warn("Server.resetHandler: missing session_id")
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptySessionID.Error()))
		return
	}

	result := models.ResetResponse{Status: "not_found", Message: "No session found with that id"}
	if s.sessions.Reset(req.SessionID) {
		slog.Info("Server.resetHandler: session reset", "session_id", req.SessionID)
		result = models.ResetResponse{Status: "reset", Message: "Session reset successfully"}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// healthHandler reports service liveness and the active session count.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"status":          "healthy",
		"active_sessions": s.sessions.Count(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}))
}

// transcriptsHandler returns the recorded turns for one session.
func (s *Server) transcriptsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.transcriptsHandler: processing transcripts request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.transcriptsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		slog.Warn("Server.transcriptsHandler: missing session_id query parameter")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required query parameter: session_id"))
		return
	}
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Transcript store not configured"))
		return
	}

	turns, err := s.st.GetTurns(sessionID)
	if err != nil {
		slog.Error("Server.transcriptsHandler: failed to fetch transcript", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch transcript"))
		return
	}
	if turns == nil {
		turns = []models.TurnRecord{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}
