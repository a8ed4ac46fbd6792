package core

import (
	"sync"
	"sync/atomic"
)

// clientEventBuffer bounds how far a connection may lag before events are dropped.
const clientEventBuffer = 64

// Client is one realtime connection as seen by the core layer.
// ID identifies the connection; UserID is the authenticated identity.
type Client struct {
	ID       string
	UserID   string
	Name     string
	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once
	exited    chan struct{}
	started   atomic.Bool

	// Owned by the client's actor goroutine.
	online bool
}

// NewClient constructs a client with initialized channels.
func NewClient(id, userID, name string) *Client {
	if name == "" {
		name = userID
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, clientEventBuffer),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Close asks the hub to stop serving the client. Safe to call many times
// and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Exited is closed after the hub has finished cleaning up the client.
func (c *Client) Exited() <-chan struct{} {
	return c.exited
}

// deliver queues ev without blocking. Returns false when the client is
// closed or its buffer is full.
func (c *Client) deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
