package core

// Room groups the connections subscribed to one direct conversation.
// Rooms are derived from the two participants and never persisted.
type Room struct {
	ID      string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to every client in the room except exclude and
// returns how many accepted it.
func (r *Room) Broadcast(event *Event, exclude *Client) int {
	delivered := 0
	for client := range r.clients {
		if client == exclude {
			continue
		}
		// Drop if slow consumer.
		if client.deliver(event) {
			delivered++
		}
	}
	return delivered
}

// Size returns the number of subscribed clients.
func (r *Room) Size() int {
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
