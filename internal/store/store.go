// Package store provides storage for the loan status agent: the volatile
// per-call session store and the call transcript store.
//
// Transcripts default to an in-memory backend; SQLite and PostgreSQL
// backends are selected by DSN detection.
package store

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// Store records call transcripts, one row per turn.
type Store interface {
	AddTurn(rec models.TurnRecord) error
	GetTurns(sessionID string) ([]models.TurnRecord, error)
	Close() error
}

// Opts holds configuration options for the transcript store.
type Opts struct {
	PostgresDSN string
	SQLiteDSN   string
}

// Option defines a configuration option for the transcript store.
type Option func(*Opts)

// WithPostgresDSN configures a PostgreSQL-backed transcript store.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// WithSQLiteDSN configures an SQLite-backed transcript store.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.SQLiteDSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Anything that is
// not recognizably a PostgreSQL URL or key/value DSN is treated as an SQLite
// file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore builds the transcript store selected by the options: PostgreSQL
// or SQLite when a DSN is set, otherwise in-memory.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case cfg.PostgresDSN != "":
		slog.Debug("store.NewStore: using PostgreSQL transcript store")
		return NewPostgresStore(cfg.PostgresDSN)
	case cfg.SQLiteDSN != "":
		slog.Debug("store.NewStore: using SQLite transcript store", "path", cfg.SQLiteDSN)
		return NewSQLiteStore(cfg.SQLiteDSN)
	default:
		slog.Debug("store.NewStore: using in-memory transcript store")
		return NewInMemoryStore(), nil
	}
}

// InMemoryStore keeps transcripts in process memory. It is the default
// backend and the one used in tests.
type InMemoryStore struct {
	mu    sync.Mutex
	turns []models.TurnRecord
}

// NewInMemoryStore creates an empty in-memory transcript store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// AddTurn appends a turn record.
func (s *InMemoryStore) AddTurn(rec models.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, rec)
	return nil
}

// GetTurns returns the recorded turns for a session in arrival order.
func (s *InMemoryStore) GetTurns(sessionID string) ([]models.TurnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TurnRecord
	for _, rec := range s.turns {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

var _ Store = (*InMemoryStore)(nil)

// errRowScan wraps row scanning failures consistently across SQL backends.
func errRowScan(err error) error {
	return fmt.Errorf("failed to scan transcript row: %w", err)
}
