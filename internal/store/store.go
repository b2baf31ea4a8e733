// Package store handles SQLite persistence.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session, history, and summary data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			start_time TEXT NOT NULL,
			end_time TEXT,
			status TEXT NOT NULL,
			current_round INTEGER NOT NULL,
			pending_exercises TEXT NOT NULL,
			active_exercise TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			round_number INTEGER NOT NULL,
			total_time_sec REAL NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS round_attempts (
			round_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			exercise_id TEXT NOT NULL,
			factor_a INTEGER NOT NULL,
			factor_b INTEGER NOT NULL,
			user_answer INTEGER,
			correct INTEGER NOT NULL,
			time_taken_sec REAL NOT NULL,
			result TEXT NOT NULL,
			PRIMARY KEY (round_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS exercise_history (
			id INTEGER PRIMARY KEY,
			exercise_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			correct INTEGER NOT NULL,
			time_taken_sec REAL NOT NULL,
			attempted_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_summaries (
			session_id TEXT PRIMARY KEY,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			total_exercises INTEGER NOT NULL,
			correct_exercises INTEGER NOT NULL,
			total_rounds INTEGER NOT NULL,
			average_time_sec REAL NOT NULL,
			success_rate REAL NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_history_exercise ON exercise_history(exercise_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
