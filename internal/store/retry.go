package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy controls how WithRetry backs off between attempts.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy is used when a zero policy is passed to WithRetry.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:       3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
}

type retryingStore struct {
	Store
	policy RetryPolicy
	log    *zerolog.Logger
}

// WithRetry wraps st so that message writes and reads are retried with
// exponential backoff on transient errors.
func WithRetry(st Store, policy RetryPolicy, logger *zerolog.Logger) Store {
	if policy.Attempts <= 0 {
		policy = DefaultRetryPolicy
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultRetryPolicy.InitialBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &retryingStore{Store: st, policy: policy, log: logger}
}

// Retryable reports whether err may succeed on another attempt.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

func (r *retryingStore) SaveMessage(ctx context.Context, msg *Message) error {
	attempt := 0
	return r.do(ctx, "save_message", func(ctx context.Context) error {
		attempt++
		err := r.Store.SaveMessage(ctx, msg)
		// An earlier attempt may have committed before its error surfaced.
		if attempt > 1 && errors.Is(err, ErrConflict) {
			return nil
		}
		return err
	})
}

func (r *retryingStore) FetchConversation(ctx context.Context, reader, peer string) ([]*Message, error) {
	var out []*Message
	err := r.do(ctx, "fetch_conversation", func(ctx context.Context) error {
		var err error
		out, err = r.Store.FetchConversation(ctx, reader, peer)
		return err
	})
	return out, err
}

func (r *retryingStore) ListConversation(ctx context.Context, a, b string, limit int) ([]*Message, error) {
	var out []*Message
	err := r.do(ctx, "list_conversation", func(ctx context.Context) error {
		var err error
		out, err = r.Store.ListConversation(ctx, a, b, limit)
		return err
	})
	return out, err
}

func (r *retryingStore) CountUnread(ctx context.Context, recipient, from string) (int, error) {
	var n int
	err := r.do(ctx, "count_unread", func(ctx context.Context) error {
		var err error
		n, err = r.Store.CountUnread(ctx, recipient, from)
		return err
	})
	return n, err
}

func (r *retryingStore) do(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := r.policy.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !Retryable(err) || attempt >= r.policy.Attempts {
			return err
		}

		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", backoff).Msg("store operation failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff *= 2
		if backoff > r.policy.MaxBackoff {
			backoff = r.policy.MaxBackoff
		}
	}
}
