package store

import (
	"log/slog"
	"sync"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// SessionStore holds per-call session state in volatile process memory. A
// restart loses all sessions; there is deliberately no durable backend.
//
// Access is default-on-miss: the first turn for an unknown session id gets a
// fresh zero-valued session. Turns for the same session are serialized by a
// per-session mutex, so the interpreter always owns the session exclusively
// for the duration of one turn. Different sessions proceed concurrently.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	mu   sync.Mutex
	sess models.Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[string]*sessionEntry)}
}

func (s *SessionStore) entry(id string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &sessionEntry{}
		s.entries[id] = e
		slog.Debug("SessionStore: new session created", "session_id", id)
	}
	return e
}

// Update runs fn under the session's lock with a working copy of the
// session. The copy is committed back only when fn returns true, so a failed
// turn never persists a partially-mutated session.
func (s *SessionStore) Update(id string, fn func(sess *models.Session) bool) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.sess
	if fn(&working) {
		e.sess = working
	}
}

// Peek returns a copy of the session without creating one on miss.
func (s *SessionStore) Peek(id string) (models.Session, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return models.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess, true
}

// Reset discards a session's state. It reports whether the session existed.
func (s *SessionStore) Reset(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		slog.Debug("SessionStore: session reset", "session_id", id)
	}
	return ok
}

// Count returns the number of active sessions.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
