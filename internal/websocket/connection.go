package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"strangers/pkg/types"
)

// Connection wraps one upgraded client socket. All frame writes go through a
// single writer goroutine; Send never blocks the caller.
type Connection struct {
	conn         *websocket.Conn
	id           string
	codec        Codec
	writeCh      chan []byte
	writeTimeout time.Duration
	connectedAt  time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	logger       *slog.Logger
}

// NewConnection wraps conn and starts its writer. bufferSize bounds the number
// of frames queued for the client before new ones are dropped.
func NewConnection(conn *websocket.Conn, id string, codec Codec, bufferSize int, writeTimeout time.Duration) *Connection {
	if codec == nil {
		codec = JSONCodec{}
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		codec:        codec,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		connectedAt:  time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		logger:       slog.Default().With("component", "websocket", "conn", id),
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.logger.Debug("write failed", "error", err)
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// ID returns the transport-assigned connection id
func (c *Connection) ID() string {
	return c.id
}

// Protocol returns the negotiated frame format
func (c *Connection) Protocol() string {
	return c.codec.Name()
}

// ConnectedAt returns when the connection was accepted
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// Done is closed when the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Send encodes an event and queues it for the writer. A full buffer drops
// the frame.
func (c *Connection) Send(event string, payload any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := c.codec.Encode(types.Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("send buffer full, dropping frame", "event", event)
		return ErrSendBufferFull
	}
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
