package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruthvika-mohan/loan-status-agent/internal/flow"
	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
	"github.com/ruthvika-mohan/loan-status-agent/internal/store"
)

// fakeTurns is a scriptable TurnHandler.
type fakeTurns struct {
	fn func(sess *models.Session, utterance string) (string, error)
}

func (f *fakeTurns) HandleTurn(ctx context.Context, utterance string, sess *models.Session) (string, error) {
	return f.fn(sess, utterance)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func newTestServer(fn func(sess *models.Session, utterance string) (string, error)) *Server {
	return NewServer("", &fakeTurns{fn: fn}, store.NewSessionStore(), store.NewInMemoryStore())
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("failed to decode response envelope: %v (body: %s)", err, w.Body.String())
		}
	}
	return w, env
}

func decodeChatResult(t *testing.T, env envelope) models.ChatResponse {
	t.Helper()
	var resp models.ChatResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatalf("failed to decode chat result: %v", err)
	}
	return resp
}

func TestChatHandler_GeneratesSessionID(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		sess.State = "start"
		return "Hello!", nil
	})

	w, env := postJSON(t, server.chatHandler, `{"message": ""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env.Status != "ok" {
		t.Fatalf("envelope status = %q", env.Status)
	}
	resp := decodeChatResult(t, env)
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if resp.Response != "Hello!" {
		t.Errorf("response = %q, want Hello!", resp.Response)
	}
	if resp.Ended {
		t.Error("call should not be ended")
	}
}

func TestChatHandler_ReusesSessionID(t *testing.T) {
	turns := 0
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		turns++
		sess.Phone = "5551234567"
		return "ok", nil
	})

	_, env := postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "hi"}`)
	resp := decodeChatResult(t, env)
	if resp.SessionID != "call-1" {
		t.Errorf("session id = %q, want call-1", resp.SessionID)
	}

	// The committed mutation is visible on the next turn.
	server.turns = &fakeTurns{fn: func(sess *models.Session, utterance string) (string, error) {
		if sess.Phone != "5551234567" {
			t.Errorf("session not persisted between turns: %+v", sess)
		}
		return "ok", nil
	}}
	postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "again"}`)
}

func TestChatHandler_MethodNotAllowed(t *testing.T) {
	server := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	w := httptest.NewRecorder()
	server.chatHandler(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestChatHandler_InvalidJSON(t *testing.T) {
	server := newTestServer(nil)
	w, env := postJSON(t, server.chatHandler, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if env.Status != "error" {
		t.Errorf("envelope status = %q, want error", env.Status)
	}
}

func TestChatHandler_MessageTooLong(t *testing.T) {
	server := newTestServer(nil)
	body := `{"session_id": "call-1", "message": "` + strings.Repeat("a", models.MaxMessageLength+1) + `"}`
	w, _ := postJSON(t, server.chatHandler, body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestChatHandler_CollaboratorFailureDiscardsSession(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		sess.Phone = "5551234567"
		return "", &flow.CollaboratorError{Op: "intent routing", Err: errors.New("classifier down")}
	})

	w, env := postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "yes"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (apology is a normal reply)", w.Code)
	}
	resp := decodeChatResult(t, env)
	if resp.Response != flow.ApologyReply {
		t.Errorf("response = %q, want apology", resp.Response)
	}
	if resp.Ended {
		t.Error("non-terminal failure must leave the call open so the caller can retry")
	}

	sess, _ := server.sessions.Peek("call-1")
	if sess.Phone != "" {
		t.Errorf("failed turn leaked session changes: %+v", sess)
	}
}

func TestChatHandler_TerminalFailureEndsCall(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		return "", &flow.CollaboratorError{Op: "goodbye generation", Terminal: true, Err: errors.New("model unavailable")}
	})

	_, env := postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": ""}`)
	resp := decodeChatResult(t, env)
	if !resp.Ended {
		t.Error("terminal failure must end the call")
	}
	if !strings.Contains(resp.Response, flow.CallEndedReply) {
		t.Errorf("response = %q, want end marker", resp.Response)
	}

	sess, ok := server.sessions.Peek("call-1")
	if !ok || !sess.Ended {
		t.Errorf("ended flag not committed: %+v (found=%v)", sess, ok)
	}
}

func TestChatHandler_RecordsTranscript(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		sess.State = "status_report"
		return "Your loan is APPROVED.", nil
	})

	postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "8888888888"}`)

	turns, err := server.st.GetTurns("call-1")
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("got %d transcript turns, want 1", len(turns))
	}
	if turns[0].Utterance != "8888888888" || turns[0].Reply != "Your loan is APPROVED." {
		t.Errorf("transcript turn = %+v", turns[0])
	}
	if turns[0].ID == "" {
		t.Error("transcript turn has no id")
	}
}

func TestChatHandler_RecoversFromPanic(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		panic("boom")
	})

	w, env := postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if env.Status != "error" {
		t.Errorf("envelope status = %q, want error", env.Status)
	}
}

func TestResetHandler(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		return "ok", nil
	})

	// Unknown session.
	_, env := postJSON(t, server.resetHandler, `{"session_id": "ghost"}`)
	var result models.ResetResponse
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Status != "not_found" {
		t.Errorf("status = %q, want not_found", result.Status)
	}

	// Existing session.
	postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "hi"}`)
	_, env = postJSON(t, server.resetHandler, `{"session_id": "call-1"}`)
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Status != "reset" {
		t.Errorf("status = %q, want reset", result.Status)
	}
	if _, ok := server.sessions.Peek("call-1"); ok {
		t.Error("session still present after reset")
	}
}

func TestResetHandler_MissingSessionID(t *testing.T) {
	server := newTestServer(nil)
	w, _ := postJSON(t, server.resetHandler, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		return "ok", nil
	})
	postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "hi"}`)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.healthHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var result struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Status != "healthy" {
		t.Errorf("health status = %q", result.Status)
	}
	if result.ActiveSessions != 1 {
		t.Errorf("active sessions = %d, want 1", result.ActiveSessions)
	}
}

func TestTranscriptsHandler(t *testing.T) {
	server := newTestServer(func(sess *models.Session, utterance string) (string, error) {
		return "Hello!", nil
	})
	postJSON(t, server.chatHandler, `{"session_id": "call-1", "message": "hi"}`)

	req := httptest.NewRequest(http.MethodGet, "/transcripts?session_id=call-1", nil)
	w := httptest.NewRecorder()
	server.transcriptsHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var turns []models.TurnRecord
	if err := json.Unmarshal(env.Result, &turns); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(turns) != 1 || turns[0].Reply != "Hello!" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestTranscriptsHandler_MissingSessionID(t *testing.T) {
	server := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/transcripts", nil)
	w := httptest.NewRecorder()
	server.transcriptsHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
