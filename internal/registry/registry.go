package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

var (
	// ErrRegistryClosed is returned by Subscribe after CloseAll.
	ErrRegistryClosed = errors.New("registry closed")
	// ErrMaxConnections is returned when the global connection limit is hit.
	ErrMaxConnections = errors.New("max connections reached")
)

// Options configures a Registry.
type Options struct {
	// SendBuffer is the per-connection outbound buffer size.
	SendBuffer int
	// MaxConnections caps the total number of live connections (0 = unlimited).
	MaxConnections int
	// HeartbeatInterval is the period of the process-wide keep-alive ticker.
	HeartbeatInterval time.Duration
}

// Hooks carries optional metric callbacks.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func()
	OnSent       func()
	OnFailed     func()
}

func (h *Hooks) fill() {
	if h.OnConnect == nil {
		h.OnConnect = func() {}
	}
	if h.OnDisconnect == nil {
		h.OnDisconnect = func() {}
	}
	if h.OnSent == nil {
		h.OnSent = func() {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func() {}
	}
}

// Registry tracks live connections per recipient and supports broadcast to
// one or many recipients plus a process-wide heartbeat. All synchronization
// is internal; callers never lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[string][]*Connection

	opts  Options
	hooks Hooks
	l     log.Logger

	closed bool

	sent   atomic.Int64
	failed atomic.Int64
}

// Stats is a snapshot of registry counters.
type Stats struct {
	ActiveConnections int   `json:"active_connections"`
	UniqueRecipients  int   `json:"unique_recipients"`
	EventsSent        int64 `json:"events_sent"`
	EventsFailed      int64 `json:"events_failed"`
}

// New creates a Registry.
func New(l log.Logger, opts Options, hooks Hooks) *Registry {
	hooks.fill()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	return &Registry{
		conns: make(map[string][]*Connection),
		opts:  opts,
		hooks: hooks,
		l:     l,
	}
}

// Subscribe creates and registers a new connection for the recipient and
// queues the "connected" handshake frame on it.
func (r *Registry) Subscribe(recipientID string) (*Connection, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if r.opts.MaxConnections > 0 && r.totalLocked() >= r.opts.MaxConnections {
		r.mu.Unlock()
		r.l.Warnf(context.Background(), "internal.registry.Subscribe: max connections reached, rejecting recipient %s", recipientID)
		return nil, ErrMaxConnections
	}

	conn := newConnection(recipientID, r.opts.SendBuffer)
	r.conns[recipientID] = append(r.conns[recipientID], conn)
	userConns := len(r.conns[recipientID])
	r.mu.Unlock()

	r.hooks.OnConnect()
	r.l.Infof(context.Background(), "internal.registry.Subscribe: recipient %s connected (connections for recipient: %d)", recipientID, userConns)

	handshake, err := NewFrame(EventConnected, nil).Marshal()
	if err != nil {
		r.Remove(conn)
		return nil, err
	}
	if err := conn.push(handshake); err != nil {
		r.Remove(conn)
		return nil, err
	}

	return conn, nil
}

// SendToOne delivers the event to every live connection of one recipient.
// Connections that fail the send are removed; there is no retry.
func (r *Registry) SendToOne(recipientID string, ev model.LiveEvent) {
	r.broadcast([]string{recipientID}, NewEventFrame(ev))
}

// SendToMany delivers the event to every live connection of each recipient.
func (r *Registry) SendToMany(recipientIDs []string, ev model.LiveEvent) {
	r.broadcast(recipientIDs, NewEventFrame(ev))
}

func (r *Registry) broadcast(recipientIDs []string, frame *Frame) {
	data, err := frame.Marshal()
	if err != nil {
		r.l.Errorf(context.Background(), "internal.registry.broadcast: marshal frame: %v", err)
		r.failed.Add(1)
		r.hooks.OnFailed()
		return
	}

	for _, id := range recipientIDs {
		r.mu.RLock()
		targets := append([]*Connection(nil), r.conns[id]...)
		r.mu.RUnlock()

		for _, conn := range targets {
			if err := conn.push(data); err != nil {
				r.l.Warnf(context.Background(), "internal.registry.broadcast: send to recipient %s failed: %v", id, err)
				r.failed.Add(1)
				r.hooks.OnFailed()
				r.Remove(conn)
				continue
			}
			r.sent.Add(1)
			r.hooks.OnSent()
		}
	}
}

// Remove unregisters and closes a connection. Removing an already-removed
// connection is a no-op. When a recipient's list becomes empty the map entry
// is dropped.
func (r *Registry) Remove(conn *Connection) {
	r.mu.Lock()
	removed := r.removeLocked(conn)
	r.mu.Unlock()

	conn.Close()
	if removed {
		r.hooks.OnDisconnect()
		r.l.Infof(context.Background(), "internal.registry.Remove: connection %s for recipient %s removed", conn.ID(), conn.RecipientID())
	}
}

func (r *Registry) removeLocked(conn *Connection) bool {
	list, exists := r.conns[conn.RecipientID()]
	if !exists {
		return false
	}
	for i, c := range list {
		if c == conn {
			r.conns[conn.RecipientID()] = append(list[:i], list[i+1:]...)
			if len(r.conns[conn.RecipientID()]) == 0 {
				delete(r.conns, conn.RecipientID())
			}
			return true
		}
	}
	return false
}

// Run drives the process-wide heartbeat until ctx is cancelled. One ticker
// serves every connection; per-connection timers would not scale.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.heartbeat()
		}
	}
}

// heartbeat sends a keep-alive frame to every live connection. A failed
// heartbeat removes the connection exactly like a failed business send.
func (r *Registry) heartbeat() {
	data, err := NewFrame(EventPing, nil).Marshal()
	if err != nil {
		r.l.Errorf(context.Background(), "internal.registry.heartbeat: marshal: %v", err)
		return
	}

	r.mu.RLock()
	var targets []*Connection
	for _, list := range r.conns {
		targets = append(targets, list...)
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.push(data); err != nil {
			r.l.Warnf(context.Background(), "internal.registry.heartbeat: recipient %s: %v", conn.RecipientID(), err)
			r.hooks.OnFailed()
			r.Remove(conn)
		}
	}
}

// ConnectionCount reports the number of live connections for a recipient.
func (r *Registry) ConnectionCount(recipientID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[recipientID])
}

// Stats returns a snapshot of registry counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		ActiveConnections: r.totalLocked(),
		UniqueRecipients:  len(r.conns),
		EventsSent:        r.sent.Load(),
		EventsFailed:      r.failed.Load(),
	}
}

func (r *Registry) totalLocked() int {
	total := 0
	for _, list := range r.conns {
		total += len(list)
	}
	return total
}

// CloseAll terminates every connection and rejects future subscriptions.
// Used by the process shutdown sequence.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	conns := r.conns
	r.conns = make(map[string][]*Connection)
	r.mu.Unlock()

	for _, list := range conns {
		for _, conn := range list {
			conn.Close()
			r.hooks.OnDisconnect()
		}
	}
}
