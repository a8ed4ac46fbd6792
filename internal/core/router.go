package core

import (
	"sort"
	"strings"
	"sync"
)

// RoomSeparator joins the two identities of a room id.
const RoomSeparator = "-"

// RoomID returns the canonical room of a and b. RoomID(a, b) == RoomID(b, a).
func RoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + RoomSeparator + b
}

// PeerOf returns the other participant of room when id is one of its two
// members. Identities may contain the separator, so the candidate peer is
// checked by re-deriving the room id.
func PeerOf(room, id string) (string, bool) {
	if id == "" || len(room) <= len(id)+len(RoomSeparator) {
		return "", false
	}
	candidates := make([]string, 0, 2)
	if p, ok := strings.CutPrefix(room, id+RoomSeparator); ok {
		candidates = append(candidates, p)
	}
	if p, ok := strings.CutSuffix(room, RoomSeparator+id); ok {
		candidates = append(candidates, p)
	}
	for _, peer := range candidates {
		if peer != "" && peer != id && RoomID(id, peer) == room {
			return peer, true
		}
	}
	return "", false
}

// Router tracks room subscriptions. A room exists only while it has at
// least one subscriber.
type Router struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	joined map[*Client]map[string]struct{}
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{
		rooms:  make(map[string]*Room),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Subscribe adds c to room. Returns false if it was already subscribed.
func (r *Router) Subscribe(c *Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[room]
	if !ok {
		rm = NewRoom(room)
		r.rooms[room] = rm
	}
	if !rm.AddClient(c) {
		return false
	}
	set, ok := r.joined[c]
	if !ok {
		set = make(map[string]struct{})
		r.joined[c] = set
	}
	set[room] = struct{}{}
	return true
}

// Unsubscribe removes c from room. Returns false if it was not subscribed.
func (r *Router) Unsubscribe(c *Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeLocked(c, room)
}

// UnsubscribeAll removes c from every room and returns those rooms sorted.
func (r *Router) UnsubscribeAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.joined[c]))
	for room := range r.joined[c] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.unsubscribeLocked(c, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (r *Router) unsubscribeLocked(c *Client, room string) bool {
	rm, ok := r.rooms[room]
	if !ok || !rm.RemoveClient(c) {
		return false
	}
	if rm.Empty() {
		delete(r.rooms, room)
	}
	if set, ok := r.joined[c]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(r.joined, c)
		}
	}
	return true
}

// IsSubscribed reports whether c is subscribed to room.
func (r *Router) IsSubscribed(c *Client, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[c][room]
	return ok
}

// Subscribers returns the number of connections subscribed to room.
func (r *Router) Subscribers(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rm, ok := r.rooms[room]; ok {
		return rm.Size()
	}
	return 0
}

// Rooms returns the number of live rooms.
func (r *Router) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Broadcast delivers event to every subscriber of room except exclude.
// Sends never block; slow consumers miss the event.
func (r *Router) Broadcast(room string, event *Event, exclude *Client) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[room]
	if !ok {
		return 0
	}
	return rm.Broadcast(event, exclude)
}
