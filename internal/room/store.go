package room

import (
	"errors"
	"sort"
	"sync"
)

var ErrRoomNotFound = errors.New("room not found")

type entry struct {
	mu   sync.Mutex
	room *Room
	dead bool // set once the room was torn down; holders must re-resolve
}

// Store owns every live room. Mutations of one room are serialized by that
// room's mutex; different rooms never contend beyond the map lookup.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*entry
}

func NewStore() *Store { return &Store{rooms: make(map[string]*entry)} }

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.rooms[id]
	s.mu.RUnlock()
	return e, ok
}

func (s *Store) loadOrCreate(id string) *entry {
	if e, ok := s.lookup(id); ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.rooms[id]; ok {
		return e
	}
	e := &entry{room: newRoom(id)}
	s.rooms[id] = e
	return e
}

// GetOrCreate returns a snapshot of the room. A room only exists while it
// has members, so a missing room yields the state a first join would start
// from, without registering anything.
func (s *Store) GetOrCreate(id string) Snapshot {
	if snap, ok := s.Get(id); ok {
		return snap
	}
	return newRoom(id).Snapshot()
}

// Get returns a snapshot of a live room.
func (s *Store) Get(id string) (Snapshot, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return Snapshot{}, false
	}
	return e.room.Snapshot(), true
}

// List returns snapshots of all live rooms ordered by id.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.dead {
			out = append(out, e.room.Snapshot())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Remove discards a room regardless of its members.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	e, ok := s.rooms[id]
	if ok {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.dead = true
	e.mu.Unlock()
}

// Mutate applies fn to an existing room under its exclusivity guarantee.
// It returns ErrRoomNotFound when the room does not exist (or was torn down
// while waiting for the lock).
func (s *Store) Mutate(id string, fn func(r *Room) error) error {
	e, ok := s.lookup(id)
	if !ok {
		return ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return ErrRoomNotFound
	}
	return s.apply(id, e, fn)
}

// MutateOrCreate is Mutate for operations that may open a new room lifetime.
func (s *Store) MutateOrCreate(id string, fn func(r *Room) error) error {
	for {
		e := s.loadOrCreate(id)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		err := s.apply(id, e, fn)
		e.mu.Unlock()
		return err
	}
}

// apply runs fn and tears the room down once it has no members left.
// Caller holds e.mu.
func (s *Store) apply(id string, e *entry, fn func(r *Room) error) error {
	err := fn(e.room)
	if !e.room.Empty() {
		return err
	}

	e.dead = true
	s.mu.Lock()
	if cur, ok := s.rooms[id]; ok && cur == e {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	return err
}
