package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"strangers/pkg/types"
)

// Dispatcher receives one connection's lifecycle and events in order
type Dispatcher interface {
	Connect(conn *Connection) error
	Dispatch(event *types.Event) error
	Disconnect(id string) error
}

// Options configures the upgrade handler and connection keepalive
type Options struct {
	AllowedOrigin  string
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	BufferSize     int
}

// DefaultOptions returns the transport defaults
func DefaultOptions() Options {
	return Options{
		AllowedOrigin:  AnyOrigin,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		BufferSize:     100,
	}
}

// Handler upgrades HTTP requests and pumps frames between sockets and the
// dispatcher
type Handler struct {
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	options    Options
	newID      func() string
	logger     *slog.Logger
}

// NewHandler creates a WebSocket handler feeding dispatcher
func NewHandler(dispatcher Dispatcher, options Options) *Handler {
	defaults := DefaultOptions()
	if options.PingInterval <= 0 {
		options.PingInterval = defaults.PingInterval
	}
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = defaults.ReadTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaults.WriteTimeout
	}
	if options.MaxMessageSize <= 0 {
		options.MaxMessageSize = defaults.MaxMessageSize
	}
	if options.BufferSize <= 0 {
		options.BufferSize = defaults.BufferSize
	}

	return &Handler{
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			CheckOrigin:      OriginChecker(options.AllowedOrigin),
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{ProtocolMsgpack, ProtocolJSON},
		},
		options: options,
		newID:   func() string { return uuid.New().String() },
		logger:  slog.Default().With("component", "websocket"),
	}
}

// HandleWebSocket upgrades the request, assigns the connection an id and
// hands it to the dispatcher
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	wsConn := NewConnection(conn, h.newID(), CodecFor(conn.Subprotocol()), h.options.BufferSize, h.options.WriteTimeout)

	if err := h.dispatcher.Connect(wsConn); err != nil {
		h.logger.Error("failed to register connection", "conn", wsConn.ID(), "error", err)
		_ = wsConn.Close()
		return
	}

	h.logger.Info("client connected", "conn", wsConn.ID(), "protocol", wsConn.Protocol(), "remote", r.RemoteAddr)

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump and keepalive until the socket fails,
// then reports the disconnect exactly once
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		if err := h.dispatcher.Disconnect(conn.ID()); err != nil {
			h.logger.Warn("failed to report disconnect", "conn", conn.ID(), "error", err)
		}
		_ = conn.Close()
		h.logger.Info("client disconnected", "conn", conn.ID())
	}()

	ws := conn.conn
	ws.SetReadLimit(h.options.MaxMessageSize)
	if err := ws.SetReadDeadline(time.Now().Add(h.options.ReadTimeout)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.options.ReadTimeout))
	})

	go h.keepalive(conn)

	for {
		frameType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read failed", "conn", conn.ID(), "error", err)
			}
			return
		}

		codec, err := codecForFrame(frameType)
		if err != nil {
			continue
		}
		name, payload, err := codec.Decode(data)
		if err != nil {
			h.logger.Debug("dropping undecodable frame", "conn", conn.ID(), "error", err)
			continue
		}

		event := &types.Event{
			ConnID:     conn.ID(),
			Name:       name,
			Payload:    payload,
			ReceivedAt: time.Now(),
		}
		if err := h.dispatcher.Dispatch(event); err != nil {
			h.logger.Warn("dispatch failed", "conn", conn.ID(), "event", name, "error", err)
			return
		}
	}
}

func (h *Handler) keepalive(conn *Connection) {
	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.options.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}
