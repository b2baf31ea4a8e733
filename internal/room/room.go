// Package room implements the shared-room race mode: a room record with
// players and a fixed exercise list, a pluggable store with change
// subscriptions, and the lifecycle operations over it.
package room

import (
	"context"
	"time"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
)

// Player is one participant's live progress within a room.
type Player struct {
	ID                   string
	Name                 string
	IsHost               bool
	IsReady              bool
	CurrentExerciseIndex int
	CorrectAnswers       int
	WrongAnswers         int
	TotalTimeMs          int64
	FinishedAt           *time.Time
}

// Exercise is one question every player races through, in shared order.
type Exercise struct {
	ID     string
	A      int
	B      int
	Answer int
}

// Settings are chosen by the host at creation time.
type Settings struct {
	ExerciseCount int
	Tables        []int
}

// Room is the full shared record. The whole record is the unit of
// storage: updates replace it, last write wins.
type Room struct {
	ID                 string
	HostID             string
	Status             Status
	Players            map[string]Player
	Exercises          []Exercise
	Settings           Settings
	CreatedAt          time.Time
	CountdownStartedAt *time.Time
	StartedAt          *time.Time
}

// PlayerResult is one row of the final ranking.
type PlayerResult struct {
	PlayerID       string
	PlayerName     string
	CorrectAnswers int
	WrongAnswers   int
	TotalTimeMs    int64
	Accuracy       float64
	Rank           int
}

// Store is the shared-state backend for rooms. Get returns nil without
// error when the room does not exist. Subscribe delivers the room after
// every change, and nil once the room is deleted; the returned func
// cancels the subscription.
type Store interface {
	Create(ctx context.Context, room Room) error
	Get(ctx context.Context, roomID string) (*Room, error)
	Update(ctx context.Context, room Room) error
	Delete(ctx context.Context, roomID string) error
	Subscribe(ctx context.Context, roomID string) (<-chan *Room, func(), error)
}
