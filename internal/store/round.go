package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuimul/internal/model"
)

// SaveRound stores a closed round together with its attempts and returns
// the generated round id. The write is transactional: either the round
// and all attempts are stored, or nothing is.
func (s *Store) SaveRound(ctx context.Context, sessionID string, round model.Round) (string, error) {
	roundID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin round transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (id, session_id, round_number, total_time_sec, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		roundID,
		sessionID,
		round.RoundNumber,
		round.TotalTimeSec,
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert round: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO round_attempts (round_id, position, exercise_id, factor_a, factor_b, user_answer, correct, time_taken_sec, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare attempt insert: %w", err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	for i, att := range round.Attempts {
		var userAnswer sql.NullInt64
		if att.UserAnswer != nil {
			userAnswer = sql.NullInt64{Int64: int64(*att.UserAnswer), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			roundID, i, att.ExerciseID, att.A, att.B,
			userAnswer, att.Correct, att.TimeTakenSec, string(att.Result),
		); err != nil {
			return "", fmt.Errorf("failed to insert attempt: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit round: %w", err)
	}
	return roundID, nil
}

// SessionRounds returns all closed rounds of a session in round order,
// each with its attempts in answer order.
func (s *Store) SessionRounds(ctx context.Context, sessionID string) ([]model.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, round_number, total_time_sec, created_at
		 FROM rounds
		 WHERE session_id = ?
		 ORDER BY round_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var rounds []model.Round
	for rows.Next() {
		var round model.Round
		var createdAt string
		if err := rows.Scan(&round.ID, &round.RoundNumber, &round.TotalTimeSec, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		if round.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse round created time: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rounds: %w", err)
	}

	for i := range rounds {
		attempts, err := s.roundAttempts(ctx, rounds[i].ID)
		if err != nil {
			return nil, err
		}
		rounds[i].Attempts = attempts
	}
	return rounds, nil
}

func (s *Store) roundAttempts(ctx context.Context, roundID string) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_id, factor_a, factor_b, user_answer, correct, time_taken_sec, result
		 FROM round_attempts
		 WHERE round_id = ?
		 ORDER BY position ASC`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var attempts []model.Attempt
	for rows.Next() {
		var att model.Attempt
		var userAnswer sql.NullInt64
		var result string
		if err := rows.Scan(&att.ExerciseID, &att.A, &att.B, &userAnswer, &att.Correct, &att.TimeTakenSec, &result); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		if userAnswer.Valid {
			answer := int(userAnswer.Int64)
			att.UserAnswer = &answer
		}
		att.Result = model.AttemptResult(result)
		attempts = append(attempts, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attempts: %w", err)
	}
	return attempts, nil
}
