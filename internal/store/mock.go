package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of Store for packages that exercise failure
// paths without a database.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, username, passwordHash, publicKey string) (*User, error) {
	args := m.Called(ctx, username, passwordHash, publicKey)
	if u, ok := args.Get(0).(*User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	args := m.Called(ctx, username)
	if u, ok := args.Get(0).(*User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListUsers(ctx context.Context, excludeID string) ([]*User, error) {
	args := m.Called(ctx, excludeID)
	if u, ok := args.Get(0).([]*User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpdateUserStatus(ctx context.Context, id string, online bool, at time.Time) error {
	args := m.Called(ctx, id, online, at)
	return args.Error(0)
}

func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStore) ListConversation(ctx context.Context, a, b string, limit int) ([]*Message, error) {
	args := m.Called(ctx, a, b, limit)
	if msgs, ok := args.Get(0).([]*Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) FetchConversation(ctx context.Context, reader, peer string) ([]*Message, error) {
	args := m.Called(ctx, reader, peer)
	if msgs, ok := args.Get(0).([]*Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CountUnread(ctx context.Context, recipient, from string) (int, error) {
	args := m.Called(ctx, recipient, from)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
