package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func TestRetrySaveMessageRecoversFromTransientError(t *testing.T) {
	m := new(MockStore)
	msg := &Message{ID: "m1"}
	m.On("SaveMessage", mock.Anything, msg).Return(errors.New("database is locked")).Once()
	m.On("SaveMessage", mock.Anything, msg).Return(nil).Once()

	st := WithRetry(m, fastPolicy, nil)
	require.NoError(t, st.SaveMessage(context.Background(), msg))
	m.AssertNumberOfCalls(t, "SaveMessage", 2)
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	m := new(MockStore)
	boom := errors.New("connection refused")
	m.On("SaveMessage", mock.Anything, mock.Anything).Return(boom)

	st := WithRetry(m, fastPolicy, nil)
	err := st.SaveMessage(context.Background(), &Message{ID: "m1"})
	require.ErrorIs(t, err, boom)
	m.AssertNumberOfCalls(t, "SaveMessage", 3)
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	m := new(MockStore)
	m.On("SaveMessage", mock.Anything, mock.Anything).Return(ErrConflict)
	m.On("FetchConversation", mock.Anything, "a", "b").Return(nil, ErrNotFound)

	st := WithRetry(m, fastPolicy, nil)
	require.ErrorIs(t, st.SaveMessage(context.Background(), &Message{ID: "dup"}), ErrConflict)
	_, err := st.FetchConversation(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrNotFound)

	m.AssertNumberOfCalls(t, "SaveMessage", 1)
	m.AssertNumberOfCalls(t, "FetchConversation", 1)
}

func TestRetryTreatsConflictAfterRetryAsCommitted(t *testing.T) {
	m := new(MockStore)
	m.On("SaveMessage", mock.Anything, mock.Anything).Return(errors.New("i/o timeout")).Once()
	m.On("SaveMessage", mock.Anything, mock.Anything).Return(ErrConflict).Once()

	st := WithRetry(m, fastPolicy, nil)
	assert.NoError(t, st.SaveMessage(context.Background(), &Message{ID: "m1"}))
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	m := new(MockStore)
	m.On("CountUnread", mock.Anything, "r", "").Return(0, errors.New("busy"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := WithRetry(m, RetryPolicy{Attempts: 5, InitialBackoff: time.Hour}, nil)
	_, err := st.CountUnread(ctx, "r", "")
	require.Error(t, err)
	m.AssertNumberOfCalls(t, "CountUnread", 1)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(ErrNotFound))
	assert.False(t, Retryable(context.Canceled))
	assert.True(t, Retryable(errors.New("disk I/O error")))
}
