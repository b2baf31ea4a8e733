package store

import (
	"context"
	"fmt"

	"github.com/verte-zerg/tuimul/internal/model"
)

// AppendHistory appends one attempt fact to the durable per-exercise log.
func (s *Store) AppendHistory(ctx context.Context, entry model.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exercise_history (exercise_id, session_id, correct, time_taken_sec, attempted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ExerciseID,
		entry.SessionID,
		entry.Correct,
		entry.TimeTakenSec,
		formatTime(entry.AttemptedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ExerciseHistory returns all history entries for an exercise in append
// order, excluding entries recorded by excludeSessionID.
func (s *Store) ExerciseHistory(ctx context.Context, exerciseID, excludeSessionID string) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_id, session_id, correct, time_taken_sec, attempted_at
		 FROM exercise_history
		 WHERE exercise_id = ? AND session_id != ?
		 ORDER BY id ASC`,
		exerciseID,
		excludeSessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var entries []model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var attemptedAt string
		if err := rows.Scan(&entry.ExerciseID, &entry.SessionID, &entry.Correct, &entry.TimeTakenSec, &attemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if entry.AttemptedAt, err = parseTime(attemptedAt); err != nil {
			return nil, fmt.Errorf("failed to parse history time: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}
