// Package store provides storage backends for the loan status agent.
//
// This file implements the SQLite-backed transcript store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists call transcripts in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if necessary creates) the SQLite database at the
// given file path and applies migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore ready", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// AddTurn inserts one transcript turn.
func (s *SQLiteStore) AddTurn(rec models.TurnRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO transcript_turns (id, session_id, utterance, reply, state, ended, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Utterance, rec.Reply, rec.State, rec.Ended, rec.Time)
	if err != nil {
		slog.Error("SQLiteStore AddTurn failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to insert transcript turn for %s: %w", rec.SessionID, err)
	}
	return nil
}

// GetTurns returns the recorded turns for a session in arrival order.
func (s *SQLiteStore) GetTurns(sessionID string) ([]models.TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, utterance, reply, state, ended, created_at FROM transcript_turns WHERE session_id = ? ORDER BY created_at`,
		sessionID)
	if err != nil {
		slog.Error("SQLiteStore GetTurns query failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query transcript turns: %w", err)
	}
	defer rows.Close()

	var turns []models.TurnRecord
	for rows.Next() {
		var rec models.TurnRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Utterance, &rec.Reply, &rec.State, &rec.Ended, &rec.Time); err != nil {
			slog.Error("SQLiteStore GetTurns scan failed", "error", err)
			return nil, errRowScan(err)
		}
		turns = append(turns, rec)
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
