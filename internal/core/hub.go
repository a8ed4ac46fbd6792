package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/presence"
	"github.com/vovakirdan/wiredm/internal/store"
)

// Hub is what the transport layer needs from the relay.
type Hub interface {
	RegisterClient(c *Client)
	UnregisterClient(c *Client)
}

const (
	defaultPersistWorkers = 4
	defaultPersistQueue   = 256
	defaultPersistTimeout = 5 * time.Second
)

// HubOptions configures a RelayHub. Zero values fall back to defaults;
// a nil Store disables persistence and history, a nil Presence gets a
// private in-memory registry.
type HubOptions struct {
	Store          store.MessageStore
	Presence       *presence.Registry
	Logger         *zerolog.Logger
	PersistWorkers int
	PersistQueue   int
	PersistTimeout time.Duration
	// HistoryLimit is the number of envelopes sent on join. Zero disables history.
	HistoryLimit int
	Now          func() time.Time
}

type persistJob struct {
	client *Client
	msg    Message
}

// RelayHub dispatches realtime commands. Every client is served by its own
// goroutine, so commands from one connection are handled in order while
// different connections run concurrently. Router and presence state are
// shared and mutex protected.
type RelayHub struct {
	router   *Router
	presence *presence.Registry
	store    store.MessageStore
	log      *zerolog.Logger
	now      func() time.Time

	historyLimit   int
	persistWorkers int
	persistTimeout time.Duration
	persistQ       chan persistJob

	mu      sync.RWMutex
	clients map[*Client]struct{}

	register chan *Client
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// NewHub creates a relay hub. Call Run to start serving clients.
func NewHub(opts HubOptions) *RelayHub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	reg := opts.Presence
	if reg == nil {
		reg = presence.NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	h := &RelayHub{
		router:         NewRouter(),
		presence:       reg,
		store:          opts.Store,
		log:            logger,
		now:            now,
		historyLimit:   opts.HistoryLimit,
		persistWorkers: opts.PersistWorkers,
		persistTimeout: opts.PersistTimeout,
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		stopped:        make(chan struct{}),
	}
	if h.persistWorkers <= 0 {
		h.persistWorkers = defaultPersistWorkers
	}
	if h.persistTimeout <= 0 {
		h.persistTimeout = defaultPersistTimeout
	}
	queue := opts.PersistQueue
	if queue <= 0 {
		queue = defaultPersistQueue
	}
	h.persistQ = make(chan persistJob, queue)
	return h
}

// Router exposes the room router, mostly for inspection.
func (h *RelayHub) Router() *Router {
	return h.router
}

// Presence exposes the registry the hub mutates.
func (h *RelayHub) Presence() *presence.Registry {
	return h.presence
}

// Run serves registered clients until ctx is cancelled, then waits for every
// client to be cleaned up and for queued envelopes to be flushed.
func (h *RelayHub) Run(ctx context.Context) {
	defer close(h.stopped)

	if h.store != nil {
		for i := 0; i < h.persistWorkers; i++ {
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.persistWorker(ctx)
			}()
		}
	}

	for {
		select {
		case c := <-h.register:
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.serve(ctx, c)
			}()
		case <-ctx.Done():
			h.wg.Wait()
			return
		}
	}
}

// RegisterClient attaches c to the hub. It is visible to presence
// broadcasts as soon as RegisterClient returns.
func (h *RelayHub) RegisterClient(c *Client) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	select {
	case h.register <- c:
	case <-h.stopped:
		h.removeClient(c)
		c.Close()
		close(c.exited)
	}
}

// UnregisterClient detaches c. Cleanup runs once on the client's own
// goroutine no matter how often or from where this is called.
func (h *RelayHub) UnregisterClient(c *Client) {
	c.Close()
}

// ClientCount returns the number of registered connections.
func (h *RelayHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *RelayHub) serve(ctx context.Context, c *Client) {
	defer close(c.exited)
	defer h.cleanup(c)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			h.handle(ctx, c, cmd)
		}
	}
}

func (h *RelayHub) cleanup(c *Client) {
	c.Close()
	h.removeClient(c)
	rooms := h.router.UnsubscribeAll(c)

	if c.online {
		h.presence.MarkOffline(c.UserID, c.ID, h.broadcastStatus)
	}

	h.log.Debug().
		Str("client_id", c.ID).
		Str("user_id", c.UserID).
		Strs("rooms", rooms).
		Msg("client cleaned up")
}

func (h *RelayHub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *RelayHub) handle(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandUserOnline:
		h.handleUserOnline(c, cmd)
	case CommandJoinRoom:
		h.handleJoin(ctx, c, cmd)
	case CommandLeaveRoom:
		h.handleLeave(c, cmd)
	case CommandSendMessage:
		h.handleSend(c, cmd)
	case CommandTyping, CommandStopTyping:
		h.handleTyping(c, cmd)
	default:
		c.deliver(errorEvent(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *RelayHub) handleUserOnline(c *Client, cmd *Command) {
	if cmd.UserID != c.UserID {
		c.deliver(errorEvent(ErrCodeIdentityMismatch, "identity does not match token"))
		return
	}
	c.online = true
	h.presence.MarkOnline(c.UserID, c.ID, h.broadcastStatus)
}

func (h *RelayHub) handleJoin(ctx context.Context, c *Client, cmd *Command) {
	if !c.online {
		c.deliver(errorEvent(ErrCodeNotOnline, "send user_online first"))
		return
	}
	peer, ok := PeerOf(cmd.Room, c.UserID)
	if !ok {
		c.deliver(errorEvent(ErrCodeForbiddenRoom, "room does not include caller"))
		return
	}
	if !h.router.Subscribe(c, cmd.Room) {
		// Clients re-join before sending; already joined is fine.
		return
	}

	h.log.Debug().Str("client_id", c.ID).Str("room", cmd.Room).Msg("joined room")

	sctx, scancel := context.WithTimeout(ctx, h.persistTimeout)
	st := h.presence.Status(sctx, peer)
	scancel()
	c.deliver(statusEvent(st))

	if h.store == nil || h.historyLimit <= 0 {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, h.persistTimeout)
	defer cancel()
	stored, err := h.store.ListConversation(hctx, c.UserID, peer, h.historyLimit)
	if err != nil {
		h.log.Error().Err(err).Str("room", cmd.Room).Msg("load history")
		c.deliver(errorEvent(ErrCodeHistoryUnavailable, "history could not be loaded"))
		return
	}
	messages := make([]Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, messageFromStore(m))
	}
	c.deliver(&Event{Kind: EventHistory, Room: cmd.Room, Messages: messages})
}

func (h *RelayHub) handleLeave(c *Client, cmd *Command) {
	if !h.router.Unsubscribe(c, cmd.Room) {
		c.deliver(errorEvent(ErrCodeNotInRoom, "not subscribed to room"))
	}
}

func (h *RelayHub) handleSend(c *Client, cmd *Command) {
	msg := cmd.Message
	msg.Room = cmd.Room

	if !h.router.IsSubscribed(c, msg.Room) {
		c.deliver(errorEvent(ErrCodeNotInRoom, "join the room before sending"))
		return
	}
	if msg.Sender != c.UserID {
		c.deliver(errorEvent(ErrCodeIdentityMismatch, "sender does not match token"))
		return
	}
	if msg.Recipient == "" || RoomID(msg.Sender, msg.Recipient) != msg.Room {
		c.deliver(errorEvent(ErrCodeRoomMismatch, "room does not match sender and recipient"))
		return
	}
	if err := crypto.ValidateShape(msg.Sealed); err != nil {
		c.deliver(errorEvent(ErrCodeInvalidEnvelope, err.Error()))
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	} else if _, err := uuid.Parse(msg.ID); err != nil {
		c.deliver(errorEvent(ErrCodeInvalidEnvelope, "message id must be a uuid"))
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = h.now().UTC()
	}

	if h.store != nil {
		h.enqueuePersist(c, msg)
	}

	n := h.router.Broadcast(msg.Room, &Event{Kind: EventReceiveMessage, Room: msg.Room, Message: msg}, nil)
	h.log.Debug().
		Str("client_id", c.ID).
		Str("room", msg.Room).
		Str("message_id", msg.ID).
		Int("delivered", n).
		Msg("message relayed")
}

func (h *RelayHub) handleTyping(c *Client, cmd *Command) {
	if !h.router.IsSubscribed(c, cmd.Room) {
		c.deliver(errorEvent(ErrCodeNotInRoom, "not subscribed to room"))
		return
	}
	if cmd.UserID != c.UserID {
		c.deliver(errorEvent(ErrCodeIdentityMismatch, "user does not match token"))
		return
	}
	kind := EventTyping
	if cmd.Kind == CommandStopTyping {
		kind = EventStopTyping
	}
	h.router.Broadcast(cmd.Room, &Event{Kind: kind, Room: cmd.Room, User: c.UserID}, c)
}

// broadcastStatus sends a presence transition to every registered client.
// It runs under the presence registry lock and only does non-blocking sends.
func (h *RelayHub) broadcastStatus(st presence.Status) {
	ev := statusEvent(st)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.deliver(ev)
	}
}

func statusEvent(st presence.Status) *Event {
	ev := &Event{Kind: EventOnlineStatus, User: st.UserID, Online: st.Online}
	if !st.LastSeen.IsZero() {
		t := st.LastSeen
		ev.LastSeen = &t
	}
	return ev
}

func (h *RelayHub) enqueuePersist(c *Client, msg Message) {
	select {
	case h.persistQ <- persistJob{client: c, msg: msg}:
	default:
		h.log.Warn().Str("message_id", msg.ID).Msg("persist queue full")
		c.deliver(deliveryEvent(msg.ID, "persist queue full"))
	}
}

func (h *RelayHub) persistWorker(ctx context.Context) {
	for {
		select {
		case job := <-h.persistQ:
			h.persist(ctx, job)
		case <-ctx.Done():
			// Flush what is already queued.
			for {
				select {
				case job := <-h.persistQ:
					h.persist(ctx, job)
				default:
					return
				}
			}
		}
	}
}

func (h *RelayHub) persist(ctx context.Context, job persistJob) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.persistTimeout)
	defer cancel()

	m, err := job.msg.toStore()
	if err == nil {
		err = h.store.SaveMessage(wctx, m)
	}
	if err != nil {
		h.log.Error().Err(err).
			Str("message_id", job.msg.ID).
			Str("room", job.msg.Room).
			Msg("persist message")
		job.client.deliver(deliveryEvent(job.msg.ID, "store unavailable"))
	}
}

// deliveryEvent reports a failed write of envelope id to its sender.
func deliveryEvent(id, reason string) *Event {
	return &Event{Kind: EventDeliveryStatus, Delivery: &Delivery{MessageID: id, Reason: reason}}
}
