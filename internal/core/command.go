package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandUserOnline declares the connection's identity as online.
	CommandUserOnline CommandKind = iota
	// CommandJoinRoom subscribes the client to a direct room.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandSendMessage relays an encrypted envelope to the room.
	CommandSendMessage
	// CommandTyping tells the peer the user started typing.
	CommandTyping
	// CommandStopTyping tells the peer the user stopped typing.
	CommandStopTyping
)

func (k CommandKind) String() string {
	switch k {
	case CommandUserOnline:
		return "user_online"
	case CommandJoinRoom:
		return "join_room"
	case CommandLeaveRoom:
		return "leave_room"
	case CommandSendMessage:
		return "send_message"
	case CommandTyping:
		return "typing"
	case CommandStopTyping:
		return "stop_typing"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	// UserID is the identity claimed by user_online, typing and stop_typing.
	UserID  string
	Room    string
	Message Message
}
