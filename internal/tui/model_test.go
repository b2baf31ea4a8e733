package tui

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuimul/internal/engine"
	"github.com/verte-zerg/tuimul/internal/exercise"
	"github.com/verte-zerg/tuimul/internal/model"
	"github.com/verte-zerg/tuimul/internal/store"
)

func newPracticeModel(t *testing.T) *Model {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tuimul.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	eng := engine.New(st, exercise.NewShuffler(), model.Config{TimeLimitSec: 10, Tables: []int{3, 4}})
	m := NewModel(eng, false)
	if err := eng.StartSession(context.Background(), nil); err != nil {
		t.Fatalf("start session: %v", err)
	}
	m.beginExercise()
	t.Cleanup(m.countdown.Cancel)
	return m
}

func TestPreviousAttemptHint(t *testing.T) {
	answer := 11
	tests := []struct {
		name string
		att  *model.Attempt
		want string
	}{
		{"no prior attempt", nil, ""},
		{"correct", &model.Attempt{Correct: true, TimeTakenSec: 3.5}, "last time: correct in 3.5s"},
		{"wrong answer", &model.Attempt{UserAnswer: &answer}, "last time: answered 11"},
		{"timeout", &model.Attempt{}, "last time: out of time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := previousAttemptHint(tt.att); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextRoundPrompt(t *testing.T) {
	clean := []model.Attempt{{Correct: true}, {Correct: true}}
	if got := nextRoundPrompt(clean); got != "enter finish session" {
		t.Fatalf("clean round prompt: %q", got)
	}
	missed := []model.Attempt{{Correct: true}, {Correct: false}, {Correct: false}}
	if got := nextRoundPrompt(missed); !strings.Contains(got, "retry 2 missed") {
		t.Fatalf("missed round prompt: %q", got)
	}
}

func TestAttemptRows(t *testing.T) {
	answer := 12
	attempts := []model.Attempt{
		{A: 3, B: 4, UserAnswer: &answer, Correct: true, TimeTakenSec: 2.5, Result: model.ResultFirst},
		{A: 4, B: 5, Correct: false, TimeTakenSec: 10, Result: model.ResultFirst},
	}
	rows := attemptRows(attempts)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !strings.Contains(rows[0], "3×4") || !strings.Contains(rows[0], "12") {
		t.Fatalf("row missing exercise or answer: %q", rows[0])
	}
	// A timeout has no answer to show.
	if !strings.Contains(rows[1], " - ") && !strings.Contains(rows[1], "     -") {
		t.Fatalf("timeout row missing placeholder: %q", rows[1])
	}
}

func TestTimeoutRecordsFailedAttempt(t *testing.T) {
	m := newPracticeModel(t)
	m.Update(timeoutMsg{seq: m.exerciseSeq})
	attempts := m.eng.CurrentRound().Attempts
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].Correct {
		t.Fatal("timeout attempt must not count as correct")
	}
	if attempts[0].UserAnswer != nil {
		t.Fatal("timeout attempt must have no answer")
	}
}

func TestStaleTimeoutIsDropped(t *testing.T) {
	m := newPracticeModel(t)
	staleSeq := m.exerciseSeq

	ex := m.eng.CurrentExercise()
	m.input.SetValue(strconv.Itoa(ex.A * ex.B))
	m.submit()
	if got := len(m.eng.CurrentRound().Attempts); got != 1 {
		t.Fatalf("expected 1 attempt after submit, got %d", got)
	}
	if m.exerciseSeq == staleSeq {
		t.Fatal("submitting must advance the exercise sequence")
	}

	// An expiration minted for the answered exercise arrives late.
	m.Update(timeoutMsg{seq: staleSeq})
	if got := len(m.eng.CurrentRound().Attempts); got != 1 {
		t.Fatalf("stale expiration recorded an attempt: %d attempts", got)
	}
}

func TestTimeoutIgnoredWhileConfirmingStop(t *testing.T) {
	m := newPracticeModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !m.confirmStop {
		t.Fatal("esc should open the stop confirmation")
	}

	m.Update(timeoutMsg{seq: m.exerciseSeq})
	if got := len(m.eng.CurrentRound().Attempts); got != 0 {
		t.Fatalf("expiration behind the dialog recorded an attempt: %d attempts", got)
	}
	if m.eng.Phase() != engine.PhaseExercise {
		t.Fatalf("expected exercise phase, got %v", m.eng.Phase())
	}
}
