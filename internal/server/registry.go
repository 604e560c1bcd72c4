package server

import (
	"slices"
	"sync"
	"time"
)

// RoomRegistry owns every live room and the connection to room mapping.
//
// Locking: a room's own mutex is always taken before mu, never after, and mu
// is only held for map reads and writes. Callbacks passed to the registry run
// with the room locked and mu released.
type RoomRegistry struct {
	rooms        map[string]*Room
	order        []string
	byConnection map[string]string
	now          func() time.Time
	mu           sync.RWMutex
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:        make(map[string]*Room),
		byConnection: make(map[string]string),
		now:          time.Now,
	}
}

// CreateRoom registers a new waiting room seated with p. fn runs before any
// other caller can reach the room.
func (rr *RoomRegistry) CreateRoom(numberLength int, p *Participant, fn func(*Room)) *Room {
	room := newRoom("", numberLength, rr.now())
	room.Players = append(room.Players, p)

	room.mu.Lock()
	defer room.mu.Unlock()

	rr.mu.Lock()
	room.Code = GenerateRoomCode(func(code string) bool {
		_, exists := rr.rooms[code]
		return exists
	})
	rr.rooms[room.Code] = room
	rr.order = append(rr.order, room.Code)
	rr.byConnection[p.ConnectionID] = room.Code
	rr.mu.Unlock()

	if fn != nil {
		fn(room)
	}
	return room
}

// FindOpenRoom returns the oldest room that is waiting for a second player
// with the requested number length.
func (rr *RoomRegistry) FindOpenRoom(numberLength int) *Room {
	for _, room := range rr.snapshot() {
		room.mu.Lock()
		open := !room.closed &&
			room.Phase == PhaseWaiting &&
			len(room.Players) == 1 &&
			room.NumberLength == numberLength
		room.mu.Unlock()

		if open {
			return room
		}
	}
	return nil
}

// JoinRoom seats p as the second player and moves the room to setup.
func (rr *RoomRegistry) JoinRoom(code string, p *Participant, fn func(*Room)) (*Room, error) {
	room, err := rr.lookup(code)
	if err != nil {
		return nil, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return nil, ErrRoomNotFound
	}
	if room.isFull() {
		return nil, ErrRoomFull
	}

	room.Players = append(room.Players, p)
	room.Phase = PhaseSetup
	room.UpdatedAt = rr.now()

	rr.mu.Lock()
	rr.byConnection[p.ConnectionID] = room.Code
	rr.mu.Unlock()

	if fn != nil {
		fn(room)
	}
	return room, nil
}

// Resolve returns the room a connection is seated in, or nil.
func (rr *RoomRegistry) Resolve(connectionID string) *Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	code, ok := rr.byConnection[connectionID]
	if !ok {
		return nil
	}
	return rr.rooms[code]
}

// lookup finds a room by user-supplied code. Malformed codes never reach the map.
func (rr *RoomRegistry) lookup(code string) (*Room, error) {
	code = NormalizeRoomCode(code)
	if err := ValidateRoomCode(code); err != nil {
		return nil, ErrRoomNotFound
	}

	rr.mu.RLock()
	defer rr.mu.RUnlock()

	room, exists := rr.rooms[code]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// WithConnectionRoom runs fn on the caller's room under its lock. It reports
// false, without calling fn, when the connection is not seated anywhere.
func (rr *RoomRegistry) WithConnectionRoom(connectionID string, fn func(*Room)) bool {
	room := rr.Resolve(connectionID)
	if room == nil {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed || room.indexOf(connectionID) < 0 {
		return false
	}

	fn(room)
	room.UpdatedAt = rr.now()
	return true
}

// RemoveParticipant unseats a connection. An emptied room is deleted; a room
// with someone left goes back to waiting with its round cleared. fn sees the
// room after removal, still locked.
func (rr *RoomRegistry) RemoveParticipant(connectionID string, fn func(room *Room, left *Participant)) bool {
	rr.mu.Lock()
	code, ok := rr.byConnection[connectionID]
	delete(rr.byConnection, connectionID)
	room := rr.rooms[code]
	rr.mu.Unlock()

	if !ok || room == nil {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	i := room.indexOf(connectionID)
	if i < 0 {
		return false
	}
	left := room.Players[i]
	room.Players = slices.Delete(room.Players, i, i+1)
	room.UpdatedAt = rr.now()

	if len(room.Players) == 0 {
		room.closed = true
		rr.deleteRoom(room)
	} else {
		room.Phase = PhaseWaiting
		room.resetRound()
	}

	if fn != nil {
		fn(room, left)
	}
	return true
}

// Sweep deletes rooms nobody is seated in and returns how many it removed.
func (rr *RoomRegistry) Sweep() int {
	removed := 0
	for _, room := range rr.snapshot() {
		room.mu.Lock()
		if len(room.Players) == 0 {
			room.closed = true
			rr.deleteRoom(room)
			removed++
		}
		room.mu.Unlock()
	}
	return removed
}

func (rr *RoomRegistry) RoomCount() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}

// snapshot lists rooms in creation order.
func (rr *RoomRegistry) snapshot() []*Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	rooms := make([]*Room, 0, len(rr.order))
	for _, code := range rr.order {
		if room, ok := rr.rooms[code]; ok {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// deleteRoom must be called with room.mu held.
func (rr *RoomRegistry) deleteRoom(room *Room) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.rooms[room.Code] != room {
		return
	}
	delete(rr.rooms, room.Code)
	if i := slices.Index(rr.order, room.Code); i >= 0 {
		rr.order = slices.Delete(rr.order, i, i+1)
	}
	for connectionID, code := range rr.byConnection {
		if code == room.Code {
			delete(rr.byConnection, connectionID)
		}
	}
}
