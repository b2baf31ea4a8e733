package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuimul/internal/exercise"
	"github.com/verte-zerg/tuimul/internal/model"
)

// Room codes avoid characters that read ambiguously (0/O, 1/I).
const (
	codeChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength  = 6
	maxPlayers  = 10
	createTries = 5
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomStarted    = errors.New("game already started")
	ErrRoomFull       = errors.New("room is full")
	ErrNotHost        = errors.New("only the host may do that")
	ErrPlayerNotFound = errors.New("player not found in room")
)

// Service runs room lifecycle operations over a Store.
type Service struct {
	store    Store
	shuffler *exercise.Shuffler
	rnd      *rand.Rand
	now      func() time.Time
}

// NewService constructs a Service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		shuffler: exercise.NewShuffler(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// NewRoomCode returns a random 6-character room code.
func (s *Service) NewRoomCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeChars[s.rnd.Intn(len(codeChars))]
	}
	return string(code)
}

// GenerateExercises builds a shuffled question list from the cross
// product of the tables, capped at the cross-product size. Empty tables
// fall back to the practice defaults.
func (s *Service) GenerateExercises(count int, tables []int) []Exercise {
	if len(tables) == 0 {
		tables = model.DefaultTables()
	}
	all := s.shuffler.Shuffle(exercise.GenerateForTables(tables))
	if count > len(all) {
		count = len(all)
	}
	exercises := make([]Exercise, count)
	for i, e := range all[:count] {
		exercises[i] = Exercise{
			ID:     fmt.Sprintf("exercise-%d", i),
			A:      e.A,
			B:      e.B,
			Answer: e.A * e.B,
		}
	}
	return exercises
}

// Create makes a new room with the caller as host (not ready) and
// returns it together with the host's player id.
func (s *Service) Create(ctx context.Context, hostName string, settings Settings) (*Room, string, error) {
	playerID := uuid.NewString()
	host := Player{ID: playerID, Name: hostName, IsHost: true}

	for try := 0; try < createTries; try++ {
		room := Room{
			ID:        s.NewRoomCode(),
			HostID:    playerID,
			Status:    StatusWaiting,
			Players:   map[string]Player{playerID: host},
			Exercises: s.GenerateExercises(settings.ExerciseCount, settings.Tables),
			Settings:  settings,
			CreatedAt: s.now(),
		}
		existing, err := s.store.Get(ctx, room.ID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to check room code: %w", err)
		}
		if existing != nil {
			continue // Code collision, roll a new one.
		}
		if err := s.store.Create(ctx, room); err != nil {
			return nil, "", fmt.Errorf("failed to create room: %w", err)
		}
		return &room, playerID, nil
	}
	return nil, "", fmt.Errorf("failed to allocate a room code")
}

// Join adds a player to a waiting room and returns the new player id.
func (s *Service) Join(ctx context.Context, roomID, playerName string) (string, error) {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.Status != StatusWaiting {
		return "", ErrRoomStarted
	}
	if len(room.Players) >= maxPlayers {
		return "", ErrRoomFull
	}

	playerID := uuid.NewString()
	room.Players[playerID] = Player{ID: playerID, Name: playerName}
	if err := s.store.Update(ctx, *room); err != nil {
		return "", fmt.Errorf("failed to join room: %w", err)
	}
	return playerID, nil
}

// SetReady flips a player's ready flag.
func (s *Service) SetReady(ctx context.Context, roomID, playerID string, ready bool) error {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	player, ok := room.Players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	player.IsReady = ready
	room.Players[playerID] = player
	if err := s.store.Update(ctx, *room); err != nil {
		return fmt.Errorf("failed to set ready: %w", err)
	}
	return nil
}

// StartCountdown moves a waiting room into the countdown state. Host
// only.
func (s *Service) StartCountdown(ctx context.Context, roomID, playerID string) error {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	if room.HostID != playerID {
		return ErrNotHost
	}
	if room.Status != StatusWaiting {
		return ErrRoomStarted
	}
	now := s.now()
	room.Status = StatusCountdown
	room.CountdownStartedAt = &now
	if err := s.store.Update(ctx, *room); err != nil {
		return fmt.Errorf("failed to start countdown: %w", err)
	}
	return nil
}

// StartGame moves a room from countdown to playing.
func (s *Service) StartGame(ctx context.Context, roomID string) error {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != StatusCountdown {
		return fmt.Errorf("room %s is not in countdown", roomID)
	}
	now := s.now()
	room.Status = StatusPlaying
	room.StartedAt = &now
	if err := s.store.Update(ctx, *room); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}
	return nil
}

// SubmitAnswer advances the player past exerciseIndex, accumulating
// spent time and the correct/wrong tally.
func (s *Service) SubmitAnswer(ctx context.Context, roomID, playerID string, exerciseIndex int, correct bool, timeSpentMs int64) error {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	player, ok := room.Players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	player.CurrentExerciseIndex = exerciseIndex + 1
	player.TotalTimeMs += timeSpentMs
	if correct {
		player.CorrectAnswers++
	} else {
		player.WrongAnswers++
	}
	room.Players[playerID] = player
	if err := s.store.Update(ctx, *room); err != nil {
		return fmt.Errorf("failed to submit answer: %w", err)
	}
	return nil
}

// Finish marks a player done; once every player has finished the room
// itself becomes finished.
func (s *Service) Finish(ctx context.Context, roomID, playerID string) error {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	player, ok := room.Players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	now := s.now()
	player.FinishedAt = &now
	room.Players[playerID] = player

	allFinished := true
	for _, p := range room.Players {
		if p.FinishedAt == nil {
			allFinished = false
			break
		}
	}
	if allFinished {
		room.Status = StatusFinished
	}
	if err := s.store.Update(ctx, *room); err != nil {
		return fmt.Errorf("failed to finish: %w", err)
	}
	return nil
}

// Leave removes a player. When the host leaves the whole room is
// deleted.
func (s *Service) Leave(ctx context.Context, roomID, playerID string) error {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	if room.HostID == playerID {
		if err := s.store.Delete(ctx, roomID); err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}
		return nil
	}
	delete(room.Players, playerID)
	if err := s.store.Update(ctx, *room); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	return nil
}

// Results ranks the players: correct answers descending, then total time
// ascending. Ranks are 1-based positions after the sort.
func Results(room Room) []PlayerResult {
	results := make([]PlayerResult, 0, len(room.Players))
	for _, p := range room.Players {
		accuracy := 0.0
		if total := p.CorrectAnswers + p.WrongAnswers; total > 0 {
			accuracy = float64(p.CorrectAnswers) / float64(total) * 100
		}
		results = append(results, PlayerResult{
			PlayerID:       p.ID,
			PlayerName:     p.Name,
			CorrectAnswers: p.CorrectAnswers,
			WrongAnswers:   p.WrongAnswers,
			TotalTimeMs:    p.TotalTimeMs,
			Accuracy:       accuracy,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CorrectAnswers != results[j].CorrectAnswers {
			return results[i].CorrectAnswers > results[j].CorrectAnswers
		}
		return results[i].TotalTimeMs < results[j].TotalTimeMs
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func (s *Service) load(ctx context.Context, roomID string) (*Room, error) {
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}
