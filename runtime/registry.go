// Package runtime holds the live state of the realtime core: which sessions
// are connected, which rooms they occupy, and how events reach them.
package runtime

import (
	"sync"

	"chat-gateway/contract"
	"chat-gateway/domain/chat"
)

type Set map[string]struct{}

// Registry is the authoritative room-membership structure. The transport
// layer only ever needs a "deliver to connection" primitive; rooms exist
// here and nowhere else.
//
// A single lock serializes membership changes against fan-out snapshots so
// a broadcast never observes a torn membership set.
type Registry struct {
	mu           sync.RWMutex
	Sessions     map[string]contract.EventSink // connection -> sink
	RoomMembers  map[chat.RoomID]Set           // room -> connections
	SessionRooms map[string]map[chat.RoomID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:     make(map[string]contract.EventSink),
		RoomMembers:  make(map[chat.RoomID]Set),
		SessionRooms: make(map[string]map[chat.RoomID]struct{}),
	}
}

// Bind registers a session's delivery sink. It must be called before the
// session joins any room.
func (r *Registry) Bind(connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sessions[connectionID] = sink
}

// Add puts a connection into a room. Adding twice is a safe no-op.
// If the room does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) Add(roomID chat.RoomID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.RoomMembers[roomID]; !ok {
		r.RoomMembers[roomID] = make(Set)
	}
	r.RoomMembers[roomID][connectionID] = struct{}{}

	if _, ok := r.SessionRooms[connectionID]; !ok {
		r.SessionRooms[connectionID] = make(map[chat.RoomID]struct{})
	}
	r.SessionRooms[connectionID][roomID] = struct{}{}
}

// Remove takes a connection out of a room and reports whether it was a
// member. Removing a non-member is a safe no-op. Empty sets are cleaned up
// to prevent memory leaks over time.
func (r *Registry) Remove(roomID chat.RoomID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(roomID, connectionID)
}

func (r *Registry) removeLocked(roomID chat.RoomID, connectionID string) bool {
	members, ok := r.RoomMembers[roomID]
	if !ok {
		return false
	}
	if _, member := members[connectionID]; !member {
		return false
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.RoomMembers, roomID)
	}

	if rooms, ok := r.SessionRooms[connectionID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.SessionRooms, connectionID)
		}
	}
	return true
}

// MembersOf returns a snapshot of the connections currently in a room.
func (r *Registry) MembersOf(roomID chat.RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(members))
	for connectionID := range members {
		res = append(res, connectionID)
	}
	return res
}

// RoomsOf returns a snapshot of the rooms a connection has joined.
func (r *Registry) RoomsOf(connectionID string) []chat.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms, ok := r.SessionRooms[connectionID]
	if !ok {
		return nil
	}
	res := make([]chat.RoomID, 0, len(rooms))
	for roomID := range rooms {
		res = append(res, roomID)
	}
	return res
}

// SinksForRoom resolves all active delivery sinks for a room in a single
// locked pass, so that a concurrent membership change resolves to either
// full delivery or full exclusion, never a partial view.
func (r *Registry) SinksForRoom(roomID chat.RoomID, excludeConnectionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for connectionID := range members {
		if connectionID == excludeConnectionID {
			continue
		}
		if sink, exists := r.Sessions[connectionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

func (r *Registry) SinkOf(connectionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.Sessions[connectionID]
	return sink, ok
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Sessions)
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.RoomMembers)
}

// RemoveSession disconnects a session: it is removed from every room it had
// joined and its sink is forgotten. The rooms it occupied are returned so
// the caller can notify the remaining occupants.
func (r *Registry) RemoveSession(connectionID string) []chat.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rooms []chat.RoomID
	for roomID := range r.SessionRooms[connectionID] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		r.removeLocked(roomID, connectionID)
	}
	delete(r.Sessions, connectionID)
	return rooms
}
