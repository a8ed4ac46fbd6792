package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventReceiveMessage delivers an envelope to room subscribers.
	EventReceiveMessage EventKind = iota
	// EventOnlineStatus announces a presence transition of User.
	EventOnlineStatus
	// EventTyping relays that User is typing in Room.
	EventTyping
	// EventStopTyping relays that User stopped typing in Room.
	EventStopTyping
	// EventHistory delivers the latest envelopes of a room upon joining.
	EventHistory
	// EventDeliveryStatus tells the sender whether an envelope was persisted.
	EventDeliveryStatus
	// EventError notifies clients about a protocol error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReceiveMessage:
		return "receive_message"
	case EventOnlineStatus:
		return "online_status"
	case EventTyping:
		return "typing"
	case EventStopTyping:
		return "stop_typing"
	case EventHistory:
		return "history"
	case EventDeliveryStatus:
		return "delivery_status"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	User     string
	Online   bool
	LastSeen *time.Time
	Message  Message
	Messages []Message // For EventHistory
	Delivery *Delivery // For EventDeliveryStatus
	Error    *CoreError
}

// Delivery reports the persistence outcome of one envelope.
type Delivery struct {
	MessageID string
	Persisted bool
	Reason    string
}

func errorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}
