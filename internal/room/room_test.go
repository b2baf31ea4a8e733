package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	st := NewMemoryStore()
	return NewService(st), st
}

func TestNewRoomCode(t *testing.T) {
	svc, _ := newTestService(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := svc.NewRoomCode()
		if len(code) != 6 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeChars, r) {
				t.Fatalf("code %q contains %q outside the charset", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("50 draws produced a single code")
	}
}

func TestGenerateExercises(t *testing.T) {
	svc, _ := newTestService(t)

	exercises := svc.GenerateExercises(5, []int{3, 4})
	if len(exercises) != 4 {
		t.Fatalf("count must cap at the cross product, got %d", len(exercises))
	}
	ids := map[string]bool{}
	for i, ex := range exercises {
		if ex.ID != fmt.Sprintf("exercise-%d", i) {
			t.Fatalf("exercise %d has id %q", i, ex.ID)
		}
		if ex.Answer != ex.A*ex.B {
			t.Fatalf("exercise %s has wrong answer %d", ex.ID, ex.Answer)
		}
		ids[fmt.Sprintf("%dx%d", ex.A, ex.B)] = true
	}
	if len(ids) != 4 {
		t.Fatalf("expected 4 distinct factor pairs, got %v", ids)
	}

	if got := svc.GenerateExercises(3, []int{3, 4, 5}); len(got) != 3 {
		t.Fatalf("expected 3 exercises, got %d", len(got))
	}
	if got := svc.GenerateExercises(3, nil); len(got) != 3 {
		t.Fatalf("empty tables must fall back to defaults, got %d", len(got))
	}
}

func TestCreateAndJoin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	room, hostID, err := svc.Create(ctx, "dana", Settings{ExerciseCount: 4, Tables: []int{3, 4}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.Status != StatusWaiting || room.HostID != hostID {
		t.Fatalf("unexpected new room: %+v", room)
	}
	host := room.Players[hostID]
	if !host.IsHost || host.IsReady {
		t.Fatalf("host must join unready: %+v", host)
	}

	guestID, err := svc.Join(ctx, room.ID, "noa")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	got, _ := svc.store.Get(ctx, room.ID)
	if len(got.Players) != 2 || got.Players[guestID].IsHost {
		t.Fatalf("guest not added: %+v", got.Players)
	}

	if _, err := svc.Join(ctx, "ZZZZZZ", "lost"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinRejectsFullAndStartedRooms(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	room, hostID, err := svc.Create(ctx, "host", Settings{ExerciseCount: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 9; i++ {
		if _, err := svc.Join(ctx, room.ID, fmt.Sprintf("p%d", i)); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if _, err := svc.Join(ctx, room.ID, "eleventh"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}

	if err := svc.StartCountdown(ctx, room.ID, hostID); err != nil {
		t.Fatalf("start countdown: %v", err)
	}
	if err := svc.StartGame(ctx, room.ID); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if _, err := svc.Join(ctx, room.ID, "late"); !errors.Is(err, ErrRoomStarted) {
		t.Fatalf("expected ErrRoomStarted, got %v", err)
	}
}

func TestCountdownIsHostOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	room, hostID, err := svc.Create(ctx, "host", Settings{ExerciseCount: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	guestID, err := svc.Join(ctx, room.ID, "guest")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := svc.StartCountdown(ctx, room.ID, guestID); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if err := svc.StartCountdown(ctx, room.ID, hostID); err != nil {
		t.Fatalf("host countdown: %v", err)
	}
	got, _ := svc.store.Get(ctx, room.ID)
	if got.Status != StatusCountdown || got.CountdownStartedAt == nil {
		t.Fatalf("countdown not recorded: %+v", got)
	}
}

func TestSubmitAnswerAccumulates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	room, hostID, err := svc.Create(ctx, "host", Settings{ExerciseCount: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.SubmitAnswer(ctx, room.ID, hostID, 0, true, 1200); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.SubmitAnswer(ctx, room.ID, hostID, 1, false, 3000); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, _ := svc.store.Get(ctx, room.ID)
	p := got.Players[hostID]
	if p.CurrentExerciseIndex != 2 || p.CorrectAnswers != 1 || p.WrongAnswers != 1 || p.TotalTimeMs != 4200 {
		t.Fatalf("progress not accumulated: %+v", p)
	}

	if err := svc.SubmitAnswer(ctx, room.ID, "ghost", 0, true, 100); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestFinishMarksRoomWhenAllDone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	room, hostID, err := svc.Create(ctx, "host", Settings{ExerciseCount: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	guestID, err := svc.Join(ctx, room.ID, "guest")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.Finish(ctx, room.ID, hostID); err != nil {
		t.Fatalf("finish host: %v", err)
	}
	got, _ := svc.store.Get(ctx, room.ID)
	if got.Status == StatusFinished {
		t.Fatalf("room finished with a player still racing")
	}
	if got.Players[hostID].FinishedAt == nil {
		t.Fatalf("host finish not recorded")
	}

	if err := svc.Finish(ctx, room.ID, guestID); err != nil {
		t.Fatalf("finish guest: %v", err)
	}
	got, _ = svc.store.Get(ctx, room.ID)
	if got.Status != StatusFinished {
		t.Fatalf("room not finished after last player")
	}
}

func TestLeave(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	room, hostID, err := svc.Create(ctx, "host", Settings{ExerciseCount: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	guestID, err := svc.Join(ctx, room.ID, "guest")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.Leave(ctx, room.ID, guestID); err != nil {
		t.Fatalf("guest leave: %v", err)
	}
	got, _ := svc.store.Get(ctx, room.ID)
	if len(got.Players) != 1 {
		t.Fatalf("guest not removed: %+v", got.Players)
	}

	if err := svc.Leave(ctx, room.ID, hostID); err != nil {
		t.Fatalf("host leave: %v", err)
	}
	got, _ = svc.store.Get(ctx, room.ID)
	if got != nil {
		t.Fatalf("host leave must delete the room")
	}
}

func TestResultsRanking(t *testing.T) {
	room := Room{Players: map[string]Player{
		"a": {ID: "a", Name: "slow-perfect", CorrectAnswers: 5, WrongAnswers: 0, TotalTimeMs: 9000},
		"b": {ID: "b", Name: "fast-perfect", CorrectAnswers: 5, WrongAnswers: 0, TotalTimeMs: 4000},
		"c": {ID: "c", Name: "sloppy", CorrectAnswers: 3, WrongAnswers: 2, TotalTimeMs: 2000},
		"d": {ID: "d", Name: "idle", CorrectAnswers: 0, WrongAnswers: 0, TotalTimeMs: 0},
	}}

	results := Results(room)
	wantOrder := []string{"b", "a", "c", "d"}
	for i, want := range wantOrder {
		if results[i].PlayerID != want {
			t.Fatalf("rank %d: got %s, want %s", i+1, results[i].PlayerID, want)
		}
		if results[i].Rank != i+1 {
			t.Fatalf("rank field %d, want %d", results[i].Rank, i+1)
		}
	}
	if results[2].Accuracy != 60 {
		t.Fatalf("accuracy for 3/5 = %v, want 60", results[2].Accuracy)
	}
	if results[3].Accuracy != 0 {
		t.Fatalf("no-attempt accuracy = %v, want 0", results[3].Accuracy)
	}
}

func TestSubscribeDeliversUpdatesAndDeletion(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	room, hostID, err := svc.Create(ctx, "host", Settings{ExerciseCount: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ch, cancel, err := st.Subscribe(ctx, room.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	recv := func() *Room {
		select {
		case r := <-ch:
			return r
		case <-time.After(time.Second):
			t.Fatalf("no notification")
			return nil
		}
	}

	if got := recv(); got == nil || got.ID != room.ID {
		t.Fatalf("expected initial state, got %+v", got)
	}

	if _, err := svc.Join(ctx, room.ID, "guest"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := recv(); got == nil || len(got.Players) != 2 {
		t.Fatalf("join not observed: %+v", got)
	}

	if err := svc.Leave(ctx, room.ID, hostID); err != nil {
		t.Fatalf("host leave: %v", err)
	}
	if got := recv(); got != nil {
		t.Fatalf("deletion must deliver nil, got %+v", got)
	}
}

func TestSubscriberDoesNotAliasStore(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	room, _, err := svc.Create(ctx, "host", Settings{ExerciseCount: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Players["injected"] = Player{ID: "injected"}

	again, _ := st.Get(ctx, room.ID)
	if _, ok := again.Players["injected"]; ok {
		t.Fatalf("mutating a Get result leaked into the store")
	}
}
