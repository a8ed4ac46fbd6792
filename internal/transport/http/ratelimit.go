package http

import "time"

// rateLimiter is a fixed-window counter owned by a single read loop, so it
// needs no locking.
type rateLimiter struct {
	limit  int
	window time.Duration
	start  time.Time
	count  int
	now    func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

// allow reports whether one more event fits in the current window. A nil
// limiter allows everything.
func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	now := r.now()
	if r.start.IsZero() || now.Sub(r.start) >= r.window {
		r.start = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
