// Package model defines shared data structures.
package model

import "time"

// SessionStatus is the lifecycle state of a practice session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusStopped    SessionStatus = "stopped"
)

// AttemptResult classifies an attempt against the latest prior attempt
// for the same exercise within the same session.
type AttemptResult string

const (
	ResultFirst        AttemptResult = "first"
	ResultImproved     AttemptResult = "improved"
	ResultDeteriorated AttemptResult = "deteriorated"
	ResultSame         AttemptResult = "same"
)

// Exercise is one multiplication fact. ID is a pure function of the
// factors, formatted "AxB".
type Exercise struct {
	ID string
	A  int
	B  int
}

// Attempt records one submitted answer or timeout for an exercise.
type Attempt struct {
	ExerciseID   string
	A            int
	B            int
	UserAnswer   *int // nil on timeout
	Correct      bool
	TimeTakenSec float64
	Result       AttemptResult
}

// Round is one pass through a working set of exercises.
// TotalTimeSec always equals the sum of its attempts' times.
type Round struct {
	ID           string
	RoundNumber  int
	TotalTimeSec float64
	Attempts     []Attempt
	CreatedAt    time.Time
}

// Session is one practice run from start to mastery or stop.
// PendingExercises and ActiveExercise are persisted for resumption.
type Session struct {
	ID               string
	StartTime        time.Time
	EndTime          *time.Time
	Status           SessionStatus
	CurrentRound     int
	PendingExercises []string
	ActiveExercise   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionUpdate is a partial session update; nil fields are left unchanged.
type SessionUpdate struct {
	Status           *SessionStatus
	CurrentRound     *int
	PendingExercises *[]string
	ActiveExercise   *string
	EndTime          *time.Time
}

// HistoryEntry is one durable attempt fact, appended across all sessions.
type HistoryEntry struct {
	ExerciseID   string
	SessionID    string
	Correct      bool
	TimeTakenSec float64
	AttemptedAt  time.Time
}

// SessionSummary is the one-row aggregate stored per finished session.
type SessionSummary struct {
	SessionID        string
	StartTime        time.Time
	EndTime          time.Time
	TotalExercises   int
	CorrectExercises int
	TotalRounds      int
	AverageTimeSec   float64
	SuccessRate      float64 // 0-100
}

// Config defines practice settings.
type Config struct {
	TimeLimitSec int
	Tables       []int
}

// DefaultTimeLimitSec is the per-exercise time limit when none is configured.
const DefaultTimeLimitSec = 10

// DefaultTables returns the default table selection (3 through 9).
func DefaultTables() []int {
	return []int{3, 4, 5, 6, 7, 8, 9}
}
