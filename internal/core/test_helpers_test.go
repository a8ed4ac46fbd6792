package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wiredm/internal/crypto"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent fails if an event of kind arrives within wait.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

func startHub(t *testing.T, opts HubOptions) (*RelayHub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	hub := NewHub(opts)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return hub, stop
}

// connect registers a client for userID and announces it online.
func connect(t *testing.T, hub *RelayHub, connID, userID string) *Client {
	t.Helper()
	c := NewClient(connID, userID, "")
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandUserOnline, UserID: userID}
	return c
}

var (
	testKeyOnce sync.Once
	testKey     *crypto.KeyPair
	testKeyErr  error
)

// sealedFor returns a valid sealed envelope. One key pair is shared by
// the whole package.
func sealedFor(t testing.TB, plaintext string) crypto.WireSealed {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = crypto.GenerateKeyPair()
	})
	if testKeyErr != nil {
		t.Fatalf("generate key pair: %v", testKeyErr)
	}
	sealed, err := crypto.Encrypt([]byte(plaintext), testKey.Public)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return sealed.Wire()
}
