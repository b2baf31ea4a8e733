package room

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store for same-machine play and tests.
type MemoryStore struct {
	mu      sync.Mutex
	rooms   map[string]Room
	subs    map[string]map[int]chan *Room
	nextSub int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]Room),
		subs:  make(map[string]map[int]chan *Room),
	}
}

func (s *MemoryStore) Create(ctx context.Context, room Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("room %s already exists", room.ID)
	}
	s.rooms[room.ID] = cloneRoom(room)
	s.notify(room.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	cloned := cloneRoom(room)
	return &cloned, nil
}

func (s *MemoryStore) Update(ctx context.Context, room Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return fmt.Errorf("room %s not found", room.ID)
	}
	s.rooms[room.ID] = cloneRoom(room)
	s.notify(room.ID)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	for _, ch := range s.subs[roomID] {
		select {
		case ch <- nil:
		default:
		}
	}
	return nil
}

// Subscribe registers a buffered channel for roomID. Slow consumers miss
// intermediate states, never the existence of a newer one: a dropped
// send is always followed by the next change, and consumers re-Get on
// receive if they need the freshest record.
func (s *MemoryStore) Subscribe(ctx context.Context, roomID string) (<-chan *Room, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *Room, 8)
	id := s.nextSub
	s.nextSub++
	if s.subs[roomID] == nil {
		s.subs[roomID] = make(map[int]chan *Room)
	}
	s.subs[roomID][id] = ch

	// Current state first, so subscribers need no separate Get.
	if room, ok := s.rooms[roomID]; ok {
		cloned := cloneRoom(room)
		ch <- &cloned
	}

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if subs, ok := s.subs[roomID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.subs, roomID)
			}
		}
	}
	return ch, cancel, nil
}

// notify fans the current record out to subscribers. Caller holds mu.
func (s *MemoryStore) notify(roomID string) {
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for _, ch := range s.subs[roomID] {
		cloned := cloneRoom(room)
		select {
		case ch <- &cloned:
		default:
		}
	}
}

// cloneRoom deep-copies the mutable parts so callers never alias stored
// state.
func cloneRoom(room Room) Room {
	cloned := room
	cloned.Players = make(map[string]Player, len(room.Players))
	for id, p := range room.Players {
		cloned.Players[id] = p
	}
	cloned.Exercises = append([]Exercise(nil), room.Exercises...)
	cloned.Settings.Tables = append([]int(nil), room.Settings.Tables...)
	if room.CountdownStartedAt != nil {
		t := *room.CountdownStartedAt
		cloned.CountdownStartedAt = &t
	}
	if room.StartedAt != nil {
		t := *room.StartedAt
		cloned.StartedAt = &t
	}
	return cloned
}
