package websocket

import (
	"log/slog"
	"sync"
)

// Registry addresses live connections by id. It implements interfaces.Emitter
// so the matching core can reach any connection without touching sockets.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      *slog.Logger
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		logger:      slog.Default().With("component", "registry"),
	}
}

// RegisterConnection adds a connection. A connection already registered under
// the same id is replaced and closed.
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if conn.ID() == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	existing, exists := r.connections[conn.ID()]
	r.connections[conn.ID()] = conn
	r.mu.Unlock()

	if exists && existing != conn {
		go func() {
			if err := existing.Close(); err != nil {
				r.logger.Debug("failed to close replaced connection", "conn", existing.ID(), "error", err)
			}
		}()
	}
	return nil
}

// UnregisterConnection removes conn only if it is still the registered
// instance for its id, so a stale connection cannot evict its replacement.
func (r *Registry) UnregisterConnection(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if registered, exists := r.connections[conn.ID()]; exists && registered == conn {
		delete(r.connections, conn.ID())
	}
}

// GetConnection returns the live connection for id
func (r *Registry) GetConnection(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[id]
	return conn, exists
}

// Emit sends an event to the connection registered under toID. Unknown ids,
// closed connections and full buffers all drop the event.
func (r *Registry) Emit(toID, event string, payload any) bool {
	conn, exists := r.GetConnection(toID)
	if !exists {
		return false
	}
	if err := conn.Send(event, payload); err != nil {
		r.logger.Debug("emit dropped", "conn", toID, "event", event, "error", err)
		return false
	}
	return true
}

// GetStats returns registry statistics for monitoring
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]int{
		"total_connections": len(r.connections),
		ProtocolJSON:        0,
		ProtocolMsgpack:     0,
	}
	for _, conn := range r.connections {
		stats[conn.Protocol()]++
	}
	return stats
}

// CloseAll closes every registered connection
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
