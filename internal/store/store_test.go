package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/tuimul/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "tuimul.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func intPtr(v int) *int { return &v }

func TestSessionLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	session := model.Session{
		ID:               "s1",
		StartTime:        time.Unix(100, 0).UTC(),
		Status:           model.StatusInProgress,
		CurrentRound:     1,
		PendingExercises: []string{"3x4", "4x3"},
		ActiveExercise:   "3x4",
	}
	if err := st.CreateSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	active, err := st.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	if active == nil || active.ID != "s1" {
		t.Fatalf("expected active session s1, got %+v", active)
	}
	if len(active.PendingExercises) != 2 || active.PendingExercises[0] != "3x4" {
		t.Fatalf("unexpected pending exercises: %v", active.PendingExercises)
	}
	if active.EndTime != nil {
		t.Fatalf("expected nil end time, got %v", active.EndTime)
	}

	round := 2
	pending := []string{"4x3"}
	if err := st.UpdateSession(ctx, "s1", model.SessionUpdate{
		CurrentRound:     &round,
		PendingExercises: &pending,
	}); err != nil {
		t.Fatalf("update session: %v", err)
	}

	active, err = st.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("active session after update: %v", err)
	}
	if active.CurrentRound != 2 || len(active.PendingExercises) != 1 {
		t.Fatalf("update not applied: %+v", active)
	}

	stopped := model.StatusStopped
	end := time.Unix(200, 0).UTC()
	if err := st.UpdateSession(ctx, "s1", model.SessionUpdate{Status: &stopped, EndTime: &end}); err != nil {
		t.Fatalf("stop session: %v", err)
	}
	active, err = st.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("active session after stop: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active session, got %+v", active)
	}
}

func TestUpdateSessionNotFound(t *testing.T) {
	st := openTestStore(t)
	round := 1
	if err := st.UpdateSession(context.Background(), "missing", model.SessionUpdate{CurrentRound: &round}); err == nil {
		t.Fatalf("expected error for missing session")
	}
}

func TestSaveAndListRounds(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	round := model.Round{
		RoundNumber:  1,
		TotalTimeSec: 12.5,
		Attempts: []model.Attempt{
			{ExerciseID: "3x4", A: 3, B: 4, UserAnswer: intPtr(12), Correct: true, TimeTakenSec: 2.5, Result: model.ResultFirst},
			{ExerciseID: "4x3", A: 4, B: 3, UserAnswer: nil, Correct: false, TimeTakenSec: 10, Result: model.ResultFirst},
		},
	}
	roundID, err := st.SaveRound(ctx, "s1", round)
	if err != nil {
		t.Fatalf("save round: %v", err)
	}
	if roundID == "" {
		t.Fatalf("expected non-empty round id")
	}

	round2 := model.Round{
		RoundNumber:  2,
		TotalTimeSec: 3,
		Attempts: []model.Attempt{
			{ExerciseID: "4x3", A: 4, B: 3, UserAnswer: intPtr(12), Correct: true, TimeTakenSec: 3, Result: model.ResultImproved},
		},
	}
	if _, err := st.SaveRound(ctx, "s1", round2); err != nil {
		t.Fatalf("save round 2: %v", err)
	}

	rounds, err := st.SessionRounds(ctx, "s1")
	if err != nil {
		t.Fatalf("session rounds: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].RoundNumber != 1 || rounds[1].RoundNumber != 2 {
		t.Fatalf("rounds out of order: %d, %d", rounds[0].RoundNumber, rounds[1].RoundNumber)
	}
	if len(rounds[0].Attempts) != 2 {
		t.Fatalf("expected 2 attempts in round 1, got %d", len(rounds[0].Attempts))
	}
	first := rounds[0].Attempts[0]
	if first.ExerciseID != "3x4" || first.UserAnswer == nil || *first.UserAnswer != 12 {
		t.Fatalf("unexpected first attempt: %+v", first)
	}
	second := rounds[0].Attempts[1]
	if second.UserAnswer != nil {
		t.Fatalf("timeout attempt should have nil answer, got %v", *second.UserAnswer)
	}
	if second.Result != model.ResultFirst || !rounds[1].Attempts[0].Correct {
		t.Fatalf("attempt fields lost in roundtrip")
	}
}

func TestHistoryAppendOrderAndExclusion(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	entries := []model.HistoryEntry{
		{ExerciseID: "3x4", SessionID: "s1", Correct: false, TimeTakenSec: 10, AttemptedAt: time.Unix(10, 0).UTC()},
		{ExerciseID: "3x4", SessionID: "s1", Correct: true, TimeTakenSec: 4, AttemptedAt: time.Unix(20, 0).UTC()},
		{ExerciseID: "3x4", SessionID: "s2", Correct: true, TimeTakenSec: 3.5, AttemptedAt: time.Unix(30, 0).UTC()},
		{ExerciseID: "4x3", SessionID: "s1", Correct: true, TimeTakenSec: 5, AttemptedAt: time.Unix(40, 0).UTC()},
	}
	for _, e := range entries {
		if err := st.AppendHistory(ctx, e); err != nil {
			t.Fatalf("append history: %v", err)
		}
	}

	got, err := st.ExerciseHistory(ctx, "3x4", "s2")
	if err != nil {
		t.Fatalf("exercise history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Correct || !got[1].Correct {
		t.Fatalf("entries out of append order: %+v", got)
	}
	for _, e := range got {
		if e.SessionID == "s2" {
			t.Fatalf("excluded session leaked into history")
		}
	}
}

func TestSummaryUpsertAndPrevious(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := model.SessionSummary{
		StartTime:        time.Unix(0, 0).UTC(),
		EndTime:          time.Unix(60, 0).UTC(),
		TotalExercises:   49,
		CorrectExercises: 40,
		TotalRounds:      3,
		AverageTimeSec:   4.2,
		SuccessRate:      81.63,
	}

	s1 := base
	s1.SessionID = "s1"
	if err := st.UpsertSummary(ctx, s1); err != nil {
		t.Fatalf("upsert s1: %v", err)
	}
	s2 := base
	s2.SessionID = "s2"
	s2.SuccessRate = 90
	if err := st.UpsertSummary(ctx, s2); err != nil {
		t.Fatalf("upsert s2: %v", err)
	}

	// Replacing the same id must not create a second row.
	s2.TotalRounds = 2
	if err := st.UpsertSummary(ctx, s2); err != nil {
		t.Fatalf("re-upsert s2: %v", err)
	}
	all, err := st.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(all))
	}

	prev, err := st.PreviousSummary(ctx, "s3")
	if err != nil {
		t.Fatalf("previous summary: %v", err)
	}
	if prev == nil || prev.SessionID != "s2" || prev.TotalRounds != 2 {
		t.Fatalf("expected latest s2 summary, got %+v", prev)
	}

	prev, err = st.PreviousSummary(ctx, "s2")
	if err != nil {
		t.Fatalf("previous summary excluding s2: %v", err)
	}
	if prev == nil || prev.SessionID != "s1" {
		t.Fatalf("expected s1 when excluding s2, got %+v", prev)
	}

	prev, err = st.PreviousSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("previous summary excluding s1: %v", err)
	}
	if prev == nil || prev.SessionID != "s2" {
		t.Fatalf("expected s2 when excluding s1, got %+v", prev)
	}
}

func TestPreviousSummaryEmpty(t *testing.T) {
	st := openTestStore(t)
	prev, err := st.PreviousSummary(context.Background(), "s1")
	if err != nil {
		t.Fatalf("previous summary: %v", err)
	}
	if prev != nil {
		t.Fatalf("expected nil on empty store, got %+v", prev)
	}
}
