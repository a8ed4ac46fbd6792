package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeUserOnline = "user_online"
	InboundTypeJoin       = "join_room"
	InboundTypeLeave      = "leave_room"
	InboundTypeSend       = "send_message"
	InboundTypeTyping     = "typing"
	InboundTypeStopTyping = "stop_typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReceiveMessage = "receive_message"
	EventOnlineStatus   = "online_status"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventHistory        = "history"
	EventDeliveryStatus = "delivery_status"
)

// UserOnlineData announces the connection's identity. Clients may also send
// the bare identity as a JSON string.
type UserOnlineData struct {
	UserID   string `json:"userId"`
	Protocol int    `json:"protocol,omitempty"`
}

// RoomData names a room to join or leave.
type RoomData struct {
	RoomID string `json:"roomId"`
}

// TypingData is relayed verbatim to the other room subscribers.
type TypingData struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// SendData carries one encrypted envelope.
type SendData struct {
	RoomID    string     `json:"roomId"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Message   EnvelopeIn `json:"message"`
}

// EnvelopeIn is the sealed payload of send_message. Only ciphertext fields
// are accepted; the decoder rejects anything else.
type EnvelopeIn struct {
	ID        string     `json:"id,omitempty"`
	Content   string     `json:"content"`
	Key       string     `json:"key"`
	IV        string     `json:"iv"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is one envelope as delivered to clients.
type EventMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	Key       string    `json:"key"`
	IV        string    `json:"iv"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read,omitempty"`
}

// EventOnlineStatusData announces a presence change.
type EventOnlineStatusData struct {
	UserID   string     `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// EventTypingData tells a subscriber the peer is (not) typing.
type EventTypingData struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// EventHistoryData delivers the latest envelopes of a room on join.
type EventHistoryData struct {
	RoomID   string         `json:"roomId"`
	Messages []EventMessage `json:"messages"`
}

// EventDeliveryStatusData signals that an envelope may not have been stored.
type EventDeliveryStatusData struct {
	ID        string `json:"id"`
	Persisted bool   `json:"persisted"`
	Reason    string `json:"reason,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
