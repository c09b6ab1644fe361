package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrEncodeFailed     = errors.New("failed to encode frame")
)

// Registry-related errors
var (
	ErrNilConnection = errors.New("connection cannot be nil")
	ErrEmptyID       = errors.New("connection id cannot be empty")
)

// Frame-related errors
var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMissingEventName = errors.New("frame has no event name")
	ErrUnsupportedFrame = errors.New("unsupported frame type")
)
