package client

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/vovakirdan/wiredm/internal/core"
	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/proto"
)

// CannotDecrypt is shown in place of a message the local key cannot open.
const CannotDecrypt = "[cannot decrypt message]"

// ErrNotOnline is returned by calls that need AnnounceOnline first.
var ErrNotOnline = errors.New("announce online first")

// Incoming is one frame from the server. Exactly one payload field is set,
// matching Event; Error is set for protocol errors.
type Incoming struct {
	Event    string
	Message  *proto.EventMessage
	Status   *proto.EventOnlineStatusData
	Typing   *proto.EventTypingData
	History  *proto.EventHistoryData
	Delivery *proto.EventDeliveryStatusData
	Error    *proto.Error
}

// Conn is a realtime connection. Send methods may be used concurrently with
// one goroutine calling Next.
type Conn struct {
	ws   *websocket.Conn
	self string
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// Dial opens a realtime connection authenticated with token.
func Dial(ctx context.Context, wsURL, token string) (*Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	ws, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: unauthorized", wsURL)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return &Conn{ws: ws}, nil
}

// Close ends the connection normally.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}

// Self is the identity announced with AnnounceOnline.
func (c *Conn) Self() string {
	return c.self
}

func (c *Conn) write(ctx context.Context, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, c.ws, proto.Inbound{Type: typ, Data: payload})
}

// AnnounceOnline declares the connection's identity. It must match the
// token's identity.
func (c *Conn) AnnounceOnline(ctx context.Context, userID string) error {
	if err := c.write(ctx, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: userID, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	c.self = userID
	return nil
}

// Join subscribes to the direct room with peer and returns its id.
func (c *Conn) Join(ctx context.Context, peer string) (string, error) {
	if c.self == "" {
		return "", ErrNotOnline
	}
	room := core.RoomID(c.self, peer)
	return room, c.write(ctx, proto.InboundTypeJoin, proto.RoomData{RoomID: room})
}

// Leave unsubscribes from the direct room with peer.
func (c *Conn) Leave(ctx context.Context, peer string) error {
	if c.self == "" {
		return ErrNotOnline
	}
	return c.write(ctx, proto.InboundTypeLeave, proto.RoomData{RoomID: core.RoomID(c.self, peer)})
}

// Send encrypts plaintext for peerPub and relays it to peer. It returns the
// message id. The plaintext buffer is not retained.
func (c *Conn) Send(ctx context.Context, peer string, peerPub *rsa.PublicKey, plaintext []byte) (string, error) {
	if c.self == "" {
		return "", ErrNotOnline
	}
	sealed, err := crypto.Encrypt(plaintext, peerPub)
	if err != nil {
		return "", err
	}
	wire := sealed.Wire()
	now := time.Now().UTC()
	id := uuid.NewString()
	err = c.write(ctx, proto.InboundTypeSend, proto.SendData{
		RoomID:    core.RoomID(c.self, peer),
		Sender:    c.self,
		Recipient: peer,
		Message: proto.EnvelopeIn{
			ID:        id,
			Content:   wire.Content,
			Key:       wire.Key,
			IV:        wire.IV,
			Timestamp: &now,
		},
	})
	return id, err
}

// Typing tells peer the local user started (true) or stopped typing.
func (c *Conn) Typing(ctx context.Context, peer string, typing bool) error {
	if c.self == "" {
		return ErrNotOnline
	}
	typ := proto.InboundTypeStopTyping
	if typing {
		typ = proto.InboundTypeTyping
	}
	return c.write(ctx, typ, proto.TypingData{RoomID: core.RoomID(c.self, peer), UserID: c.self})
}

// Next blocks until the server sends a frame.
func (c *Conn) Next(ctx context.Context) (Incoming, error) {
	var out rawOutbound
	if err := wsjson.Read(ctx, c.ws, &out); err != nil {
		return Incoming{}, err
	}
	if out.Type == proto.OutboundTypeError {
		if out.Error == nil {
			out.Error = &proto.Error{Code: "unknown", Msg: "empty error"}
		}
		return Incoming{Error: out.Error}, nil
	}

	in := Incoming{Event: out.Event}
	var target any
	switch out.Event {
	case proto.EventReceiveMessage:
		in.Message = &proto.EventMessage{}
		target = in.Message
	case proto.EventOnlineStatus:
		in.Status = &proto.EventOnlineStatusData{}
		target = in.Status
	case proto.EventTyping, proto.EventStopTyping:
		in.Typing = &proto.EventTypingData{}
		target = in.Typing
	case proto.EventHistory:
		in.History = &proto.EventHistoryData{}
		target = in.History
	case proto.EventDeliveryStatus:
		in.Delivery = &proto.EventDeliveryStatusData{}
		target = in.Delivery
	default:
		return in, nil
	}
	if err := json.Unmarshal(out.Data, target); err != nil {
		return Incoming{}, fmt.Errorf("decode %s: %w", out.Event, err)
	}
	return in, nil
}

// Open decrypts msg with the local private key. A message that was not
// encrypted for priv, or was altered in transit, yields crypto.ErrDecryption.
func Open(msg proto.EventMessage, priv *rsa.PrivateKey) ([]byte, error) {
	sealed, err := crypto.WireSealed{Content: msg.Content, Key: msg.Key, IV: msg.IV}.Sealed()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrDecryption, err)
	}
	return crypto.Decrypt(sealed, priv)
}

// Display returns the text to show for msg: the plaintext, or CannotDecrypt.
func Display(msg proto.EventMessage, priv *rsa.PrivateKey) string {
	plain, err := Open(msg, priv)
	if err != nil {
		return CannotDecrypt
	}
	defer crypto.Wipe(plain)
	return string(plain)
}
