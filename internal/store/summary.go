package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/tuimul/internal/model"
)

// UpsertSummary stores one summary row per finished session, replacing
// any existing row for the same session id.
func (s *Store) UpsertSummary(ctx context.Context, summary model.SessionSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_summaries (session_id, start_time, end_time, total_exercises, correct_exercises, total_rounds, average_time_sec, success_rate, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			total_exercises = excluded.total_exercises,
			correct_exercises = excluded.correct_exercises,
			total_rounds = excluded.total_rounds,
			average_time_sec = excluded.average_time_sec,
			success_rate = excluded.success_rate,
			saved_at = excluded.saved_at`,
		summary.SessionID,
		formatTime(summary.StartTime),
		formatTime(summary.EndTime),
		summary.TotalExercises,
		summary.CorrectExercises,
		summary.TotalRounds,
		summary.AverageTimeSec,
		summary.SuccessRate,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

// PreviousSummary returns the most recently saved summary whose session
// id differs from excludeSessionID, or nil if none exists.
func (s *Store) PreviousSummary(ctx context.Context, excludeSessionID string) (*model.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, start_time, end_time, total_exercises, correct_exercises, total_rounds, average_time_sec, success_rate
		 FROM session_summaries
		 WHERE session_id != ?
		 ORDER BY saved_at DESC
		 LIMIT 1`,
		excludeSessionID,
	)
	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return summary, nil
}

// ListSummaries returns all stored session summaries in save order.
func (s *Store) ListSummaries(ctx context.Context) ([]model.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, start_time, end_time, total_exercises, correct_exercises, total_rounds, average_time_sec, success_rate
		 FROM session_summaries
		 ORDER BY saved_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var summaries []model.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summaries: %w", err)
	}
	return summaries, nil
}

func scanSummary(row rowScanner) (*model.SessionSummary, error) {
	var summary model.SessionSummary
	var startTime, endTime string
	err := row.Scan(
		&summary.SessionID,
		&startTime,
		&endTime,
		&summary.TotalExercises,
		&summary.CorrectExercises,
		&summary.TotalRounds,
		&summary.AverageTimeSec,
		&summary.SuccessRate,
	)
	if err != nil {
		return nil, err
	}
	if summary.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("failed to parse summary start time: %w", err)
	}
	if summary.EndTime, err = parseTime(endTime); err != nil {
		return nil, fmt.Errorf("failed to parse summary end time: %w", err)
	}
	return &summary, nil
}
