package client

import (
	"sync"
	"time"
)

// DefaultTypingTimeout is how long after the last keystroke the notifier
// reports that typing stopped.
const DefaultTypingTimeout = 1200 * time.Millisecond

// TypingNotifier debounces keystrokes into typing / stop_typing
// notifications. The first keystroke announces typing; every keystroke
// restarts a single timer; when it fires, or Stop is called, stop_typing is
// announced once.
type TypingNotifier struct {
	// emitMu serializes each state change with its emit so the peer sees
	// announcements in the order they happened.
	emitMu    sync.Mutex
	mu        sync.Mutex
	timeout   time.Duration
	emit      func(typing bool)
	timer     *time.Timer
	announced bool
	gen       uint64
}

// NewTypingNotifier calls emit on every state change. A non-positive
// timeout means DefaultTypingTimeout. emit must not block for long.
func NewTypingNotifier(timeout time.Duration, emit func(typing bool)) *TypingNotifier {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingNotifier{timeout: timeout, emit: emit}
}

// Keystroke records user input.
func (n *TypingNotifier) Keystroke() {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()
	n.mu.Lock()
	n.gen++
	gen := n.gen
	first := !n.announced
	n.announced = true
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.timeout, func() { n.expire(gen) })
	n.mu.Unlock()

	if first {
		n.emit(true)
	}
}

// Stop ends the typing state immediately, e.g. when the message is sent.
func (n *TypingNotifier) Stop() {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()
	n.mu.Lock()
	n.gen++
	was := n.announced
	n.announced = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()

	if was {
		n.emit(false)
	}
}

// Typing reports whether typing is currently announced.
func (n *TypingNotifier) Typing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.announced
}

func (n *TypingNotifier) expire(gen uint64) {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()
	n.mu.Lock()
	// A newer keystroke or Stop superseded this timer.
	if gen != n.gen || !n.announced {
		n.mu.Unlock()
		return
	}
	n.announced = false
	n.timer = nil
	n.mu.Unlock()

	n.emit(false)
}
