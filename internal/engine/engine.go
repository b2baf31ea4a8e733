// Package engine drives round-based practice sessions: it sequences
// exercises, records attempts against the time limit, re-queues failures
// into the next round, and detects mastery.
package engine

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuimul/internal/compare"
	"github.com/verte-zerg/tuimul/internal/exercise"
	"github.com/verte-zerg/tuimul/internal/model"
)

// Phase is the progression state of the engine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseExercise
	PhaseSummary
	PhaseComplete
)

// SessionStore is the durable backing required for session progression.
type SessionStore interface {
	CreateSession(ctx context.Context, session model.Session) error
	UpdateSession(ctx context.Context, sessionID string, upd model.SessionUpdate) error
	ActiveSession(ctx context.Context) (*model.Session, error)
	SaveRound(ctx context.Context, sessionID string, round model.Round) (string, error)
	SessionRounds(ctx context.Context, sessionID string) ([]model.Round, error)
}

// HistoryStore receives fire-and-forget attempt facts.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry model.HistoryEntry) error
}

// SummaryStore receives the one summary row per finished session.
type SummaryStore interface {
	UpsertSummary(ctx context.Context, summary model.SessionSummary) error
}

// Store combines everything the engine persists to and compares against.
type Store interface {
	SessionStore
	HistoryStore
	SummaryStore
	compare.HistorySource
	compare.SummarySource
}

// Engine is the round/session state machine. It is not safe for
// concurrent use: callers must serialize operations, one at a time.
// In-memory state is the source of truth; persistence is mandatory at
// round and session boundaries and best-effort within a round.
type Engine struct {
	store    Store
	shuffler *exercise.Shuffler
	cfg      model.Config

	now  func() time.Time
	logf func(format string, args ...any)

	phase           Phase
	session         *model.Session
	allExercises    []model.Exercise
	pending         []model.Exercise
	index           int
	currentRound    *model.Round
	completedRounds []model.Round
	comparison      *compare.Comparison

	lastErr error
	retryFn func() error

	// gen invalidates stale retry closures across session boundaries.
	gen int
}

// New constructs an Engine over the given store and configuration.
func New(store Store, shuffler *exercise.Shuffler, cfg model.Config) *Engine {
	if cfg.TimeLimitSec <= 0 {
		cfg.TimeLimitSec = model.DefaultTimeLimitSec
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = model.DefaultTables()
	}
	return &Engine{
		store:    store,
		shuffler: shuffler,
		cfg:      cfg,
		now:      time.Now,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
}

// Phase returns the current progression phase.
func (e *Engine) Phase() Phase { return e.phase }

// Session returns the active session, nil when idle.
func (e *Engine) Session() *model.Session { return e.session }

// Config returns the engine configuration.
func (e *Engine) Config() model.Config { return e.cfg }

// CurrentRound returns the in-progress round, nil outside the exercise
// phase.
func (e *Engine) CurrentRound() *model.Round { return e.currentRound }

// CompletedRounds returns the closed rounds of the active session.
func (e *Engine) CompletedRounds() []model.Round { return e.completedRounds }

// Comparison returns the cross-session comparison, set once the session
// reaches the complete phase.
func (e *Engine) Comparison() *compare.Comparison { return e.comparison }

// Err returns the pending recoverable error, nil when none.
func (e *Engine) Err() error { return e.lastErr }

// PendingCount returns how many exercises remain in the current round,
// including the active one.
func (e *Engine) PendingCount() int {
	if e.index >= len(e.pending) {
		return 0
	}
	return len(e.pending) - e.index
}

// CurrentExercise returns the exercise awaiting an answer, or nil.
func (e *Engine) CurrentExercise() *model.Exercise {
	if e.phase != PhaseExercise || e.index >= len(e.pending) {
		return nil
	}
	ex := e.pending[e.index]
	return &ex
}

// PreviousAttempt returns the latest attempt for an exercise within this
// session's completed rounds, or nil.
func (e *Engine) PreviousAttempt(exerciseID string) *model.Attempt {
	for i := len(e.completedRounds) - 1; i >= 0; i-- {
		round := e.completedRounds[i]
		for j := len(round.Attempts) - 1; j >= 0; j-- {
			if round.Attempts[j].ExerciseID == exerciseID {
				att := round.Attempts[j]
				return &att
			}
		}
	}
	return nil
}

// Retry re-runs the last failed operation from the top. It is a no-op
// when no recoverable error is pending.
func (e *Engine) Retry() error {
	if e.retryFn == nil {
		return nil
	}
	fn := e.retryFn
	e.lastErr = nil
	e.retryFn = nil
	return fn()
}

// StartSession begins a new session over the given tables (engine
// defaults when empty): generates the catalog, shuffles round 1's
// working set, and persists the initial session record.
func (e *Engine) StartSession(ctx context.Context, tables []int) error {
	if e.phase == PhaseExercise || e.phase == PhaseSummary {
		return fmt.Errorf("a session is already in progress")
	}
	if len(tables) == 0 {
		tables = e.cfg.Tables
	}
	e.reset()
	gen := e.gen

	op := func() error {
		session := model.Session{
			ID:           uuid.NewString(),
			StartTime:    e.now(),
			Status:       model.StatusInProgress,
			CurrentRound: 1,
		}
		all := exercise.GenerateForTables(tables)
		shuffled := e.shuffler.Shuffle(all)
		session.PendingExercises = exercise.IDs(shuffled)
		if len(shuffled) > 0 {
			session.ActiveExercise = shuffled[0].ID
		}

		if err := e.store.CreateSession(ctx, session); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		if e.gen != gen {
			return nil // Stopped while the write was pending.
		}
		e.session = &session
		e.allExercises = all
		e.pending = shuffled
		e.index = 0
		e.currentRound = &model.Round{RoundNumber: 1}
		e.completedRounds = nil
		e.phase = PhaseExercise
		return nil
	}
	return e.runRecoverable(op)
}

// ResumeSession restores the last in-progress session and its closed
// rounds, rebuilding the pending set from the persisted id list (or the
// full catalog when empty) and re-shuffling it. Stays idle when no
// active session exists.
func (e *Engine) ResumeSession(ctx context.Context) error {
	if e.phase != PhaseIdle {
		return fmt.Errorf("a session is already in progress")
	}
	gen := e.gen

	op := func() error {
		session, err := e.store.ActiveSession(ctx)
		if err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
		if session == nil {
			return nil
		}
		rounds, err := e.store.SessionRounds(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("failed to load session rounds: %w", err)
		}

		all := exercise.GenerateForTables(e.cfg.Tables)
		pending := all
		if len(session.PendingExercises) > 0 {
			if filtered := exercise.FilterByIDs(all, session.PendingExercises); len(filtered) > 0 {
				pending = filtered
			}
		}

		if e.gen != gen {
			return nil
		}
		e.session = session
		e.allExercises = all
		e.pending = e.shuffler.Shuffle(pending)
		e.index = 0
		e.currentRound = &model.Round{RoundNumber: session.CurrentRound}
		e.completedRounds = rounds
		e.phase = PhaseExercise
		return nil
	}
	return e.runRecoverable(op)
}

// SubmitAnswer records an answer for the current exercise. Correctness
// requires both the right product and elapsed strictly under the time
// limit; late or wrong answers are charged the full limit.
func (e *Engine) SubmitAnswer(ctx context.Context, answer int, elapsedSec float64) error {
	ex := e.CurrentExercise()
	if ex == nil {
		return nil
	}

	limit := float64(e.cfg.TimeLimitSec)
	correct := exercise.IsCorrect(*ex, answer) && elapsedSec < limit
	timeTaken := limit
	if correct {
		timeTaken = elapsedSec
	}
	timeTaken = round2(timeTaken)

	userAnswer := answer
	att := model.Attempt{
		ExerciseID:   ex.ID,
		A:            ex.A,
		B:            ex.B,
		UserAnswer:   &userAnswer,
		Correct:      correct,
		TimeTakenSec: timeTaken,
		Result:       e.trendFor(ex.ID, correct, timeTaken),
	}
	return e.recordAttempt(ctx, att)
}

// HandleTimeout records the current exercise as failed with no answer,
// charged the full time limit.
func (e *Engine) HandleTimeout(ctx context.Context) error {
	ex := e.CurrentExercise()
	if ex == nil {
		return nil
	}
	limit := float64(e.cfg.TimeLimitSec)
	att := model.Attempt{
		ExerciseID:   ex.ID,
		A:            ex.A,
		B:            ex.B,
		Correct:      false,
		TimeTakenSec: limit,
		Result:       e.trendFor(ex.ID, false, limit),
	}
	return e.recordAttempt(ctx, att)
}

func (e *Engine) recordAttempt(ctx context.Context, att model.Attempt) error {
	// History writes never block progression.
	if err := e.store.AppendHistory(ctx, model.HistoryEntry{
		ExerciseID:   att.ExerciseID,
		SessionID:    e.session.ID,
		Correct:      att.Correct,
		TimeTakenSec: att.TimeTakenSec,
		AttemptedAt:  e.now(),
	}); err != nil {
		e.logf("failed to save exercise history: %v", err)
	}

	e.currentRound.Attempts = append(e.currentRound.Attempts, att)
	e.currentRound.TotalTimeSec += att.TimeTakenSec

	if e.index >= len(e.pending)-1 {
		return e.closeRound(ctx)
	}

	e.index++
	remaining := exercise.IDs(e.pending[e.index:])
	upd := model.SessionUpdate{
		PendingExercises: &remaining,
		ActiveExercise:   &remaining[0],
		CurrentRound:     &e.currentRound.RoundNumber,
	}
	// Intra-round progress is best-effort; resume re-serves at most one
	// answered exercise if this write is lost.
	if err := e.store.UpdateSession(ctx, e.session.ID, upd); err != nil {
		e.logf("failed to save session progress: %v", err)
	}
	return nil
}

func (e *Engine) closeRound(ctx context.Context) error {
	round := *e.currentRound
	gen := e.gen

	op := func() error {
		if _, err := e.store.SaveRound(ctx, e.session.ID, round); err != nil {
			return fmt.Errorf("failed to save round: %w", err)
		}
		if e.gen != gen {
			return nil
		}
		e.completedRounds = append(e.completedRounds, round)
		e.currentRound = nil
		e.pending = nil
		e.index = 0
		e.phase = PhaseSummary
		return nil
	}
	return e.runRecoverable(op)
}

// ContinueToNextRound either builds the next round from the failures of
// the just-closed round, or, when there are none, finalizes the session:
// summary upsert, cross-session comparison, and the completed mark.
func (e *Engine) ContinueToNextRound(ctx context.Context) error {
	if e.phase != PhaseSummary || len(e.completedRounds) == 0 {
		return nil
	}

	last := e.completedRounds[len(e.completedRounds)-1]
	var failedIDs []string
	for _, att := range last.Attempts {
		if !att.Correct {
			failedIDs = append(failedIDs, att.ExerciseID)
		}
	}

	if len(failedIDs) == 0 {
		return e.completeSession(ctx)
	}

	nextNumber := len(e.completedRounds) + 1
	gen := e.gen

	op := func() error {
		next := e.shuffler.Shuffle(exercise.FilterByIDs(e.allExercises, failedIDs))
		ids := exercise.IDs(next)
		upd := model.SessionUpdate{
			CurrentRound:     &nextNumber,
			PendingExercises: &ids,
			ActiveExercise:   &ids[0],
		}
		if err := e.store.UpdateSession(ctx, e.session.ID, upd); err != nil {
			return fmt.Errorf("failed to start next round: %w", err)
		}
		if e.gen != gen {
			return nil
		}
		e.session.CurrentRound = nextNumber
		e.pending = next
		e.index = 0
		e.currentRound = &model.Round{RoundNumber: nextNumber}
		e.phase = PhaseExercise
		return nil
	}
	return e.runRecoverable(op)
}

func (e *Engine) completeSession(ctx context.Context) error {
	gen := e.gen

	op := func() error {
		end := e.now()
		summary := compare.Summarize(e.session.ID, e.completedRounds, e.session.StartTime, end)
		if err := e.store.UpsertSummary(ctx, summary); err != nil {
			return fmt.Errorf("failed to save session summary: %w", err)
		}

		comparison, err := compare.Compare(ctx, e.session.ID, e.completedRounds,
			e.session.StartTime, end, e.store, e.store)
		if err != nil {
			return fmt.Errorf("failed to compare session: %w", err)
		}

		completed := model.StatusCompleted
		upd := model.SessionUpdate{Status: &completed, EndTime: &end}
		if err := e.store.UpdateSession(ctx, e.session.ID, upd); err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}

		if e.gen != gen {
			return nil
		}
		e.session.Status = model.StatusCompleted
		e.session.EndTime = &end
		e.comparison = comparison
		e.phase = PhaseComplete
		return nil
	}
	return e.runRecoverable(op)
}

// StopSession abandons the active session. The transition to idle is
// immediate; the durable stopped mark is still mandatory and retryable,
// but a retry can only write the mark, never resurrect play.
func (e *Engine) StopSession(ctx context.Context) error {
	if e.phase != PhaseExercise && e.phase != PhaseSummary {
		return nil
	}
	sessionID := e.session.ID
	e.reset()

	op := func() error {
		end := e.now()
		stopped := model.StatusStopped
		upd := model.SessionUpdate{Status: &stopped, EndTime: &end}
		if err := e.store.UpdateSession(ctx, sessionID, upd); err != nil {
			return fmt.Errorf("failed to stop session: %w", err)
		}
		return nil
	}
	return e.runRecoverable(op)
}

// reset clears all in-memory session state and invalidates pending
// retries from the previous session.
func (e *Engine) reset() {
	e.gen++
	e.phase = PhaseIdle
	e.session = nil
	e.allExercises = nil
	e.pending = nil
	e.index = 0
	e.currentRound = nil
	e.completedRounds = nil
	e.comparison = nil
	e.lastErr = nil
	e.retryFn = nil
}

// runRecoverable executes op; on failure it records the error together
// with op itself as the bound retry action.
func (e *Engine) runRecoverable(op func() error) error {
	if err := op(); err != nil {
		e.lastErr = err
		e.retryFn = op
		return err
	}
	return nil
}

// trendFor classifies an attempt against the latest prior attempt for
// the same exercise within this session.
func (e *Engine) trendFor(exerciseID string, correct bool, timeTaken float64) model.AttemptResult {
	prev := e.PreviousAttempt(exerciseID)
	if prev == nil {
		return model.ResultFirst
	}
	switch {
	case correct && !prev.Correct:
		return model.ResultImproved
	case !correct && prev.Correct:
		return model.ResultDeteriorated
	case correct && prev.Correct:
		if timeTaken < prev.TimeTakenSec {
			return model.ResultImproved
		}
		if timeTaken > prev.TimeTakenSec {
			return model.ResultDeteriorated
		}
		return model.ResultSame
	default:
		return model.ResultSame
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
