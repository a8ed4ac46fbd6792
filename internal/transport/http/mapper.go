package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vovakirdan/wiredm/internal/core"
	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/proto"
)

const errCodeUnsupportedVersion = "unsupported_version"

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// decodeStrict rejects unknown fields and trailing data.
func decodeStrict(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("trailing data after payload")

// inboundToCommand maps one client frame to a hub command. Every decoding
// problem is reported to the client as a protocol error; the connection
// stays open.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeUserOnline:
		return userOnlineCommand(inbound.Data)
	case proto.InboundTypeJoin, proto.InboundTypeLeave:
		var room proto.RoomData
		if err := json.Unmarshal(inbound.Data, &room); err != nil {
			return nil, badRequest("invalid room payload")
		}
		if room.RoomID == "" {
			return nil, badRequest("roomId is required")
		}
		kind := core.CommandJoinRoom
		if inbound.Type == proto.InboundTypeLeave {
			kind = core.CommandLeaveRoom
		}
		return &core.Command{Kind: kind, Room: room.RoomID}, nil
	case proto.InboundTypeSend:
		return sendCommand(inbound.Data)
	case proto.InboundTypeTyping, proto.InboundTypeStopTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, badRequest("invalid typing payload")
		}
		if typing.RoomID == "" || typing.UserID == "" {
			return nil, badRequest("roomId and userId are required")
		}
		kind := core.CommandTyping
		if inbound.Type == proto.InboundTypeStopTyping {
			kind = core.CommandStopTyping
		}
		return &core.Command{Kind: kind, Room: typing.RoomID, UserID: typing.UserID}, nil
	default:
		return nil, badRequest("unknown message type")
	}
}

// userOnlineCommand accepts either a bare identity string or an object.
func userOnlineCommand(data json.RawMessage) (*core.Command, *proto.Error) {
	var online proto.UserOnlineData
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &online.UserID); err != nil {
			return nil, badRequest("invalid user_online payload")
		}
	} else if err := json.Unmarshal(data, &online); err != nil {
		return nil, badRequest("invalid user_online payload")
	}
	if online.Protocol != 0 && online.Protocol != proto.ProtocolVersion {
		return nil, &proto.Error{Code: errCodeUnsupportedVersion, Msg: "unsupported protocol version"}
	}
	if strings.TrimSpace(online.UserID) == "" {
		return nil, badRequest("userId is required")
	}
	return &core.Command{Kind: core.CommandUserOnline, UserID: online.UserID}, nil
}

func sendCommand(data json.RawMessage) (*core.Command, *proto.Error) {
	var send proto.SendData
	if err := decodeStrict(data, &send); err != nil {
		return nil, badRequest("invalid send_message payload")
	}
	if send.RoomID == "" || send.Sender == "" || send.Recipient == "" {
		return nil, badRequest("roomId, sender and recipient are required")
	}
	msg := core.Message{
		ID:        send.Message.ID,
		Room:      send.RoomID,
		Sender:    send.Sender,
		Recipient: send.Recipient,
		Sealed: crypto.WireSealed{
			Content: send.Message.Content,
			Key:     send.Message.Key,
			IV:      send.Message.IV,
		},
	}
	if send.Message.Timestamp != nil {
		msg.CreatedAt = send.Message.Timestamp.UTC()
	}
	return &core.Command{Kind: core.CommandSendMessage, UserID: send.Sender, Room: send.RoomID, Message: msg}, nil
}

func eventMessage(m core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:        m.ID,
		RoomID:    m.Room,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Content:   m.Sealed.Content,
		Key:       m.Sealed.Key,
		IV:        m.Sealed.IV,
		Timestamp: m.CreatedAt,
		Read:      m.Read,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventReceiveMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  eventMessage(event.Message),
		}
	case core.EventOnlineStatus:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineStatus,
			Data: proto.EventOnlineStatusData{
				UserID:   event.User,
				Online:   event.Online,
				LastSeen: event.LastSeen,
			},
		}
	case core.EventTyping, core.EventStopTyping:
		name := proto.EventTyping
		if event.Kind == core.EventStopTyping {
			name = proto.EventStopTyping
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data:  proto.EventTypingData{RoomID: event.Room, UserID: event.User},
		}
	case core.EventHistory:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, eventMessage(msg))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data:  proto.EventHistoryData{RoomID: event.Room, Messages: messages},
		}
	case core.EventDeliveryStatus:
		status := proto.EventDeliveryStatusData{}
		if event.Delivery != nil {
			status = proto.EventDeliveryStatusData{
				ID:        event.Delivery.MessageID,
				Persisted: event.Delivery.Persisted,
				Reason:    event.Delivery.Reason,
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventDeliveryStatus,
			Data:  status,
		}
	case core.EventError:
		if event.Error != nil {
			return proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
			}
		}
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: "internal_error", Msg: "unknown event"},
	}
}
