package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	mu        sync.Mutex
	published []Status
	stored    map[string]Status
	done      chan struct{}
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{stored: make(map[string]Status), done: make(chan struct{}, 16)}
}

func (f *fakeMirror) Publish(_ context.Context, st Status) error {
	f.mu.Lock()
	f.published = append(f.published, st)
	f.stored[st.UserID] = st
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeMirror) Lookup(_ context.Context, userID string) (*Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stored[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func TestMultiTabPresence(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(WithClock(func() time.Time { return now }))

	tr := reg.MarkOnline("alice", "conn-1", nil)
	assert.True(t, tr.Changed)
	assert.True(t, tr.Status.Online)

	tr = reg.MarkOnline("alice", "conn-2", nil)
	assert.False(t, tr.Changed, "second tab must not re-announce")
	assert.Equal(t, 2, reg.Connections("alice"))

	tr = reg.MarkOffline("alice", "conn-1", nil)
	assert.False(t, tr.Changed, "closing one tab must not go offline")
	assert.True(t, reg.IsOnline("alice"))
	_, seen := reg.LastSeen("alice")
	assert.False(t, seen)

	now = now.Add(time.Minute)
	tr = reg.MarkOffline("alice", "conn-2", nil)
	assert.True(t, tr.Changed)
	assert.False(t, tr.Status.Online)
	assert.Equal(t, now, tr.Status.LastSeen)
	assert.False(t, reg.IsOnline("alice"))

	last, seen := reg.LastSeen("alice")
	require.True(t, seen)
	assert.Equal(t, now, last)
}

func TestMarkOnlineIsIdempotentPerConnection(t *testing.T) {
	reg := NewRegistry()

	assert.True(t, reg.MarkOnline("bob", "c", nil).Changed)
	assert.False(t, reg.MarkOnline("bob", "c", nil).Changed)
	assert.Equal(t, 1, reg.Connections("bob"))

	assert.True(t, reg.MarkOffline("bob", "c", nil).Changed)
	assert.False(t, reg.MarkOffline("bob", "c", nil).Changed)
	assert.False(t, reg.MarkOffline("nobody", "c", nil).Changed)
}

func TestOnlineListing(t *testing.T) {
	reg := NewRegistry()
	reg.MarkOnline("carol", "1", nil)
	reg.MarkOnline("alice", "2", nil)
	reg.MarkOnline("bob", "3", nil)
	reg.MarkOffline("bob", "3", nil)

	assert.Equal(t, []string{"alice", "carol"}, reg.Online())
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	reg := NewRegistry()
	const conns = 200

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.MarkOnline("dave", fmt.Sprintf("c%d", i), nil)
		}(i)
	}
	wg.Wait()
	require.Equal(t, conns, reg.Connections("dave"))

	var mu sync.Mutex
	offline := 0
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if reg.MarkOffline("dave", fmt.Sprintf("c%d", i), nil).Changed {
				mu.Lock()
				offline++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, offline, "exactly one offline transition")
	assert.False(t, reg.IsOnline("dave"))
}

func TestNotifyFollowsTransitionOrder(t *testing.T) {
	reg := NewRegistry()

	// notify runs under the registry lock, so seen needs no lock of its own.
	var seen []bool
	notify := func(st Status) { seen = append(seen, st.Online) }

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			reg.MarkOffline("frank", fmt.Sprintf("c%d", i), notify)
		}(i)
		go func(i int) {
			defer wg.Done()
			reg.MarkOnline("frank", fmt.Sprintf("c%d", i+1), notify)
		}(i)
	}
	wg.Wait()

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		require.NotEqual(t, seen[i-1], seen[i], "transitions must alternate")
	}
	assert.True(t, seen[0], "first transition is online")
	assert.Equal(t, reg.IsOnline("frank"), seen[len(seen)-1])
}

func TestMirrorReceivesTransitionsAndServesLastSeen(t *testing.T) {
	mirror := newFakeMirror()
	reg := NewRegistry(WithMirror(mirror, nil))
	t.Cleanup(reg.Close)

	reg.MarkOnline("erin", "1", nil)
	reg.MarkOnline("erin", "2", nil)
	reg.MarkOffline("erin", "1", nil)
	reg.MarkOffline("erin", "2", nil)

	for i := 0; i < 2; i++ {
		select {
		case <-mirror.done:
		case <-time.After(2 * time.Second):
			t.Fatal("mirror publish not observed")
		}
	}

	mirror.mu.Lock()
	require.Len(t, mirror.published, 2)
	assert.True(t, mirror.published[0].Online)
	assert.False(t, mirror.published[1].Online)
	mirror.mu.Unlock()

	// A fresh registry (process restart) knows nothing but can still
	// report lastSeen from the mirror.
	restarted := NewRegistry(WithMirror(mirror, nil))
	t.Cleanup(restarted.Close)
	st := restarted.Status(context.Background(), "erin")
	assert.False(t, st.Online)
	assert.False(t, st.LastSeen.IsZero())

	unknown := restarted.Status(context.Background(), "nobody")
	assert.Equal(t, Status{UserID: "nobody"}, unknown)
}
