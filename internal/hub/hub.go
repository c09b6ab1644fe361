package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"strangers/internal/matcher"
	"strangers/internal/router"
	"strangers/internal/session"
	"strangers/internal/websocket"
	"strangers/pkg/types"
)

type eventKind int

const (
	kindConnect eventKind = iota
	kindEvent
	kindDisconnect
)

// hubEvent is one entry of the single ordered inbound stream. Connects,
// events and disconnects share a channel so a connection's disconnect can
// never overtake its earlier events.
type hubEvent struct {
	kind  eventKind
	conn  *websocket.Connection
	event *types.Event
	id    string
}

// Hub owns all matching state and processes every inbound event on a single
// goroutine, one at a time
type Hub struct {
	inbox    chan hubEvent
	statsCh  chan chan types.LiveStats
	shutdown chan struct{}
	done     chan struct{}

	registry *websocket.Registry
	sessions *session.Manager
	matcher  *matcher.Matcher
	router   *router.Router
	limiter  *router.RateLimiter

	// verify checks session invariants after every event
	verify     bool
	violations atomic.Int64

	running  bool
	stopOnce sync.Once
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewHub creates a hub over the given components. A nil limiter disables
// inbound rate limiting.
func NewHub(registry *websocket.Registry, sessions *session.Manager, m *matcher.Matcher, r *router.Router, limiter *router.RateLimiter) *Hub {
	if limiter == nil {
		limiter = router.NewRateLimiter(0)
	}
	return &Hub{
		inbox:    make(chan hubEvent, 1000),
		statsCh:  make(chan chan types.LiveStats),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		registry: registry,
		sessions: sessions,
		matcher:  m,
		router:   r,
		limiter:  limiter,
		logger:   slog.Default().With("component", "hub"),
	}
}

// VerifyInvariants makes the loop check session invariants after every event
// and log any violation. Call it before Start.
func (h *Hub) VerifyInvariants() {
	h.verify = true
}

// Start begins processing on a new goroutine
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	select {
	case <-h.done:
		return ErrHubNotRunning
	default:
	}
	h.running = true

	h.logger.Info("starting hub")
	go h.run(ctx)

	return nil
}

// Stop ends processing and waits for the loop to exit. Events still queued
// are discarded.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	h.mu.Unlock()

	h.logger.Info("stopping hub")
	h.stopOnce.Do(func() { close(h.shutdown) })
	<-h.done
	return nil
}

// Connect queues registration of a newly upgraded connection
func (h *Hub) Connect(conn *websocket.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	return h.enqueue(hubEvent{kind: kindConnect, conn: conn, id: conn.ID()})
}

// Dispatch queues an inbound event
func (h *Hub) Dispatch(event *types.Event) error {
	return h.enqueue(hubEvent{kind: kindEvent, event: event, id: event.ConnID})
}

// Disconnect queues the transport-level disconnect of id
func (h *Hub) Disconnect(id string) error {
	return h.enqueue(hubEvent{kind: kindDisconnect, id: id})
}

// enqueue blocks until the loop accepts the event or stops, so events are
// never dropped while the hub is running
func (h *Hub) enqueue(e hubEvent) error {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return ErrHubNotRunning
	}

	select {
	case h.inbox <- e:
		return nil
	case <-h.done:
		return ErrHubNotRunning
	}
}

// Snapshot returns the live matching state as seen by the loop
func (h *Hub) Snapshot(ctx context.Context) (types.LiveStats, error) {
	reply := make(chan types.LiveStats, 1)
	select {
	case h.statsCh <- reply:
	case <-h.done:
		return types.LiveStats{}, ErrHubNotRunning
	case <-ctx.Done():
		return types.LiveStats{}, ctx.Err()
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-ctx.Done():
		return types.LiveStats{}, ctx.Err()
	}
}

// IsRunning reports whether the loop is accepting events
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.logger.Info("hub processing stopped")

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case e := <-h.inbox:
			h.process(e)

		case reply := <-h.statsCh:
			reply <- types.LiveStats{
				Connections: h.sessions.Len(),
				Waiting:     h.sessions.QueueLen(),
				Pairs:       h.sessions.Pairs(),
				Violations:  h.violations.Load(),
			}

		case <-cleanup.C:
			h.limiter.Cleanup()

		case <-h.shutdown:
			return

		case <-ctx.Done():
			h.logger.Info("hub context cancelled")
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

// process handles one inbound entry. A panic is contained to the entry that
// caused it.
func (h *Hub) process(e hubEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic while handling event", "conn", e.id, "kind", e.kind, "panic", fmt.Sprint(r))
		}
	}()

	switch e.kind {
	case kindConnect:
		h.handleConnect(e.conn)
	case kindEvent:
		h.handleEvent(e.event)
	case kindDisconnect:
		h.handleDisconnect(e.id)
	}

	if h.verify {
		if err := h.sessions.CheckInvariants(); err != nil {
			h.violations.Add(1)
			h.logger.Error("session invariant violated", "conn", e.id, "error", err)
		}
	}
}

func (h *Hub) handleConnect(conn *websocket.Connection) {
	if err := h.registry.RegisterConnection(conn); err != nil {
		h.logger.Error("connection registration failed", "conn", conn.ID(), "error", err)
		_ = conn.Close()
		return
	}
	h.sessions.Add(conn.ID())

	if err := conn.Send(types.EventConnected, types.ConnectedNotice{ID: conn.ID()}); err != nil {
		h.logger.Warn("failed to send connected notice", "conn", conn.ID(), "error", err)
	}
}

func (h *Hub) handleDisconnect(id string) {
	if p, exists := h.sessions.Get(id); exists {
		h.logger.Info("connection closed", "conn", id, "connected_for", time.Since(p.ConnectedAt).Round(time.Millisecond))
	}
	h.router.EndChat(id, types.EndReasonDisconnected)
	h.sessions.Remove(id)
	h.limiter.Remove(id)

	if conn, exists := h.registry.GetConnection(id); exists {
		h.registry.UnregisterConnection(conn)
	}
}
