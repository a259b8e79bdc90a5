// Package store provides storage backends for the loan status agent.
//
// This file implements the PostgreSQL-backed transcript store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists call transcripts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL with the given DSN and applies
// migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore ready")

	return &PostgresStore{db: db}, nil
}

// AddTurn inserts one transcript turn.
func (s *PostgresStore) AddTurn(rec models.TurnRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO transcript_turns (id, session_id, utterance, reply, state, ended, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.SessionID, rec.Utterance, rec.Reply, rec.State, rec.Ended, rec.Time)
	if err != nil {
		slog.Error("PostgresStore AddTurn failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to insert transcript turn for %s: %w", rec.SessionID, err)
	}
	return nil
}

// GetTurns returns the recorded turns for a session in arrival order.
func (s *PostgresStore) GetTurns(sessionID string) ([]models.TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, utterance, reply, state, ended, created_at FROM transcript_turns WHERE session_id = $1 ORDER BY created_at`,
		sessionID)
	if err != nil {
		slog.Error("PostgresStore GetTurns query failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query transcript turns: %w", err)
	}
	defer rows.Close()

	var turns []models.TurnRecord
	for rows.Next() {
		var rec models.TurnRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Utterance, &rec.Reply, &rec.State, &rec.Ended, &rec.Time); err != nil {
			slog.Error("PostgresStore GetTurns scan failed", "error", err)
			return nil, errRowScan(err)
		}
		turns = append(turns, rec)
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
