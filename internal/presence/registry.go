// Package presence tracks which identities currently hold at least one live
// realtime connection.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the presence snapshot of one identity.
type Status struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// Transition reports the effect of MarkOnline or MarkOffline.
// Changed is true only when the identity crossed 0↔1 connections.
type Transition struct {
	Changed bool
	Status  Status
}

// Mirror receives every presence transition in order, from a single
// background goroutine.
type Mirror interface {
	Publish(ctx context.Context, status Status) error
	Lookup(ctx context.Context, userID string) (*Status, error)
}

type entry struct {
	conns    map[string]struct{}
	lastSeen time.Time
}

// Registry is a reference-counted presence table. An identity is online iff
// at least one connection handle is registered for it.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	mirror  Mirror
	pub     chan Status
	stop    chan struct{}
	once    sync.Once
	log     *zerolog.Logger
	timeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for lastSeen.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithMirror publishes transitions to an external store.
func WithMirror(m Mirror, logger *zerolog.Logger) Option {
	return func(r *Registry) {
		r.mirror = m
		if logger != nil {
			r.log = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	nop := zerolog.Nop()
	r := &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
		log:     &nop,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mirror != nil {
		r.pub = make(chan Status, 256)
		r.stop = make(chan struct{})
		go r.runMirror()
	}
	return r
}

// Close stops the mirror publisher. Pending snapshots are flushed first.
func (r *Registry) Close() {
	if r.stop == nil {
		return
	}
	r.once.Do(func() { close(r.stop) })
}

// Notify is called with r.mu held for every 0↔1 transition, so calls for one
// identity arrive in the same order the transitions happened. It must not
// block or call back into the Registry.
type Notify func(Status)

// MarkOnline registers conn for identity. Registering the same handle twice
// is a no-op. notify may be nil.
func (r *Registry) MarkOnline(identity, conn string, notify Notify) Transition {
	r.mu.Lock()
	e, ok := r.entries[identity]
	if !ok {
		e = &entry{conns: make(map[string]struct{})}
		r.entries[identity] = e
	}
	before := len(e.conns)
	e.conns[conn] = struct{}{}
	tr := Transition{
		Changed: before == 0 && len(e.conns) == 1,
		Status:  Status{UserID: identity, Online: true, LastSeen: e.lastSeen},
	}
	if tr.Changed {
		r.enqueue(tr.Status)
		if notify != nil {
			notify(tr.Status)
		}
	}
	r.mu.Unlock()
	return tr
}

// MarkOffline removes conn for identity. When the last handle goes away the
// identity turns offline and lastSeen is stamped. notify may be nil.
func (r *Registry) MarkOffline(identity, conn string, notify Notify) Transition {
	r.mu.Lock()
	e, ok := r.entries[identity]
	if !ok {
		r.mu.Unlock()
		return Transition{Status: Status{UserID: identity}}
	}
	if _, held := e.conns[conn]; !held {
		st := Status{UserID: identity, Online: len(e.conns) > 0, LastSeen: e.lastSeen}
		r.mu.Unlock()
		return Transition{Status: st}
	}
	delete(e.conns, conn)
	tr := Transition{Status: Status{UserID: identity, Online: len(e.conns) > 0, LastSeen: e.lastSeen}}
	if len(e.conns) == 0 {
		e.lastSeen = r.now()
		tr.Changed = true
		tr.Status.LastSeen = e.lastSeen
		r.enqueue(tr.Status)
		if notify != nil {
			notify(tr.Status)
		}
	}
	r.mu.Unlock()
	return tr
}

// IsOnline reports whether identity has at least one live connection.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[identity]
	return ok && len(e.conns) > 0
}

// Connections returns the number of live connections for identity.
func (r *Registry) Connections(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[identity]; ok {
		return len(e.conns)
	}
	return 0
}

// LastSeen returns when identity last went offline in this process.
func (r *Registry) LastSeen(identity string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[identity]
	if !ok || e.lastSeen.IsZero() {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// Status returns the in-process view of identity, falling back to the
// mirror for lastSeen when this process has never seen it.
func (r *Registry) Status(ctx context.Context, identity string) Status {
	r.mu.Lock()
	e, ok := r.entries[identity]
	var st Status
	if ok {
		st = Status{UserID: identity, Online: len(e.conns) > 0, LastSeen: e.lastSeen}
	}
	r.mu.Unlock()
	if ok {
		return st
	}

	st = Status{UserID: identity}
	if r.mirror == nil {
		return st
	}
	remote, err := r.mirror.Lookup(ctx, identity)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", identity).Msg("presence mirror lookup failed")
		return st
	}
	if remote != nil {
		// Online comes only from live connections held by this process.
		st.LastSeen = remote.LastSeen
	}
	return st
}

// Online lists identities with at least one live connection, sorted.
func (r *Registry) Online() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id, e := range r.entries {
		if len(e.conns) > 0 {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// enqueue must be called with r.mu held so snapshots keep transition order.
func (r *Registry) enqueue(st Status) {
	if r.pub == nil {
		return
	}
	select {
	case r.pub <- st:
	default:
		r.log.Warn().Str("user_id", st.UserID).Bool("online", st.Online).Msg("presence mirror queue full, dropping snapshot")
	}
}

func (r *Registry) runMirror() {
	for {
		select {
		case st := <-r.pub:
			r.publish(st)
		case <-r.stop:
			for {
				select {
				case st := <-r.pub:
					r.publish(st)
				default:
					return
				}
			}
		}
	}
}

func (r *Registry) publish(st Status) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.mirror.Publish(ctx, st); err != nil {
		r.log.Warn().Err(err).Str("user_id", st.UserID).Bool("online", st.Online).Msg("presence mirror publish failed")
	}
}
