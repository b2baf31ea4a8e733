package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/tuimul/internal/model"
)

// CreateSession inserts a new session record.
func (s *Store) CreateSession(ctx context.Context, session model.Session) error {
	pending, err := json.Marshal(session.PendingExercises)
	if err != nil {
		return fmt.Errorf("failed to encode pending exercises: %w", err)
	}
	now := formatTime(time.Now())
	var endTime sql.NullString
	if session.EndTime != nil {
		endTime = sql.NullString{String: formatTime(*session.EndTime), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, start_time, end_time, status, current_round, pending_exercises, active_exercise, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		formatTime(session.StartTime),
		endTime,
		string(session.Status),
		session.CurrentRound,
		string(pending),
		session.ActiveExercise,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// UpdateSession applies a partial update to an existing session.
// Nil fields in upd are left unchanged.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, upd model.SessionUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.CurrentRound != nil {
		sets = append(sets, "current_round = ?")
		args = append(args, *upd.CurrentRound)
	}
	if upd.PendingExercises != nil {
		pending, err := json.Marshal(*upd.PendingExercises)
		if err != nil {
			return fmt.Errorf("failed to encode pending exercises: %w", err)
		}
		sets = append(sets, "pending_exercises = ?")
		args = append(args, string(pending))
	}
	if upd.ActiveExercise != nil {
		sets = append(sets, "active_exercise = ?")
		args = append(args, *upd.ActiveExercise)
	}
	if upd.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, formatTime(*upd.EndTime))
	}

	args = append(args, sessionID)
	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// ActiveSession returns the most recently started in-progress session,
// or nil if none exists.
func (s *Store) ActiveSession(ctx context.Context) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, start_time, end_time, status, current_round, pending_exercises, active_exercise, created_at, updated_at
		 FROM sessions
		 WHERE status = ?
		 ORDER BY start_time DESC
		 LIMIT 1`,
		string(model.StatusInProgress),
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		session   model.Session
		startTime string
		endTime   sql.NullString
		status    string
		pending   string
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&session.ID,
		&startTime,
		&endTime,
		&status,
		&session.CurrentRound,
		&pending,
		&session.ActiveExercise,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Status = model.SessionStatus(status)
	if session.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("failed to parse session start time: %w", err)
	}
	if endTime.Valid {
		parsed, err := parseTime(endTime.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session end time: %w", err)
		}
		session.EndTime = &parsed
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse session created time: %w", err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse session updated time: %w", err)
	}
	if err := json.Unmarshal([]byte(pending), &session.PendingExercises); err != nil {
		return nil, fmt.Errorf("failed to decode pending exercises: %w", err)
	}
	return &session, nil
}
