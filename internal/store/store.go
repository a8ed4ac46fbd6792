package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("conflict")
)

// User is a directory entry. ID is the stable identity used by the realtime
// layer; PublicKey is the PEM encoded RSA key peers wrap content keys with.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	PublicKey    string
	// Online is the explicitly set status flag (PATCH /users/status). It is
	// independent of realtime presence.
	Online    bool
	LastSeen  *time.Time
	CreatedAt time.Time
}

// Message is one persisted encrypted envelope between two identities.
type Message struct {
	ID         string
	Sender     string
	Recipient  string
	CipherText []byte
	WrappedKey []byte
	IV         []byte
	CreatedAt  time.Time
	Read       bool
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a user. Returns ErrConflict if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash, publicKey string) (*User, error)

	// GetUserByID retrieves a user by identity.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers lists every user except excludeID, ordered by username.
	ListUsers(ctx context.Context, excludeID string) ([]*User, error)

	// UpdateUserStatus sets the explicit online flag and lastSeen.
	UpdateUserStatus(ctx context.Context, id string, online bool, at time.Time) error
}

// MessageStore handles envelope persistence and read state.
type MessageStore interface {
	// SaveMessage persists an envelope. ID and CreatedAt must be set.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListConversation returns the newest limit envelopes exchanged between
	// a and b in ascending timestamp order. Read state is untouched.
	ListConversation(ctx context.Context, a, b string, limit int) ([]*Message, error)

	// FetchConversation returns every envelope between reader and peer in
	// ascending timestamp order and marks the returned unread envelopes
	// addressed to reader as read. The returned values carry the read state
	// as it was before the fetch.
	FetchConversation(ctx context.Context, reader, peer string) ([]*Message, error)

	// CountUnread counts unread envelopes addressed to recipient. An empty
	// from counts across all senders.
	CountUnread(ctx context.Context, recipient, from string) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
