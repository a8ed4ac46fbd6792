package core

import (
	"time"

	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/store"
)

// Message is an encrypted envelope in flight. The hub only ever sees the
// sealed form.
type Message struct {
	ID        string
	Room      string
	Sender    string
	Recipient string
	Sealed    crypto.WireSealed
	CreatedAt time.Time
	Read      bool
}

// messageFromStore converts a persisted envelope for the history event.
func messageFromStore(m *store.Message) Message {
	sealed := &crypto.Sealed{CipherText: m.CipherText, WrappedKey: m.WrappedKey, IV: m.IV}
	return Message{
		ID:        m.ID,
		Room:      RoomID(m.Sender, m.Recipient),
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Sealed:    sealed.Wire(),
		CreatedAt: m.CreatedAt,
		Read:      m.Read,
	}
}

// toStore decodes the wire fields. The envelope must already have passed
// crypto.ValidateShape.
func (m Message) toStore() (*store.Message, error) {
	sealed, err := m.Sealed.Sealed()
	if err != nil {
		return nil, err
	}
	return &store.Message{
		ID:         m.ID,
		Sender:     m.Sender,
		Recipient:  m.Recipient,
		CipherText: sealed.CipherText,
		WrappedKey: sealed.WrappedKey,
		IV:         sealed.IV,
		CreatedAt:  m.CreatedAt,
	}, nil
}
