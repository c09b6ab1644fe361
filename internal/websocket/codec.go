package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"strangers/pkg/types"
)

// Subprotocols offered during the upgrade handshake
const (
	ProtocolJSON    = "json"
	ProtocolMsgpack = "msgpack"
)

// Codec encodes and decodes envelopes for one frame format
type Codec interface {
	Name() string
	FrameType() int
	Encode(env types.Envelope) ([]byte, error)
	Decode(data []byte) (string, types.Payload, error)
}

// CodecFor returns the codec for a negotiated subprotocol. Anything other
// than msgpack falls back to JSON text frames.
func CodecFor(protocol string) Codec {
	if protocol == ProtocolMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// codecForFrame picks the inbound codec by frame type, so a client may mix
// text and binary frames regardless of what it negotiated.
func codecForFrame(frameType int) (Codec, error) {
	switch frameType {
	case websocket.TextMessage:
		return JSONCodec{}, nil
	case websocket.BinaryMessage:
		return MsgpackCodec{}, nil
	default:
		return nil, ErrUnsupportedFrame
	}
}

// JSONCodec carries envelopes as JSON text frames
type JSONCodec struct{}

type jsonFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (JSONCodec) Name() string   { return ProtocolJSON }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Encode(env types.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (string, types.Payload, error) {
	var frame jsonFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame.Event == "" {
		return "", nil, ErrMissingEventName
	}
	return frame.Event, jsonPayload(frame.Data), nil
}

type jsonPayload json.RawMessage

func (p jsonPayload) Empty() bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (p jsonPayload) Decode(v any) error {
	if p.Empty() {
		return types.ErrMissingPayload
	}
	return json.Unmarshal(p, v)
}

// MsgpackCodec carries envelopes as msgpack binary frames
type MsgpackCodec struct{}

type msgpackFrame struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data"`
}

func (MsgpackCodec) Name() string   { return ProtocolMsgpack }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(env types.Envelope) ([]byte, error) {
	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return data, nil
}

func (MsgpackCodec) Decode(data []byte) (string, types.Payload, error) {
	var frame msgpackFrame
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame.Event == "" {
		return "", nil, ErrMissingEventName
	}
	return frame.Event, msgpackPayload(frame.Data), nil
}

type msgpackPayload msgpack.RawMessage

// 0xc0 is the msgpack nil marker
func (p msgpackPayload) Empty() bool {
	return len(p) == 0 || (len(p) == 1 && p[0] == 0xc0)
}

func (p msgpackPayload) Decode(v any) error {
	if p.Empty() {
		return types.ErrMissingPayload
	}
	return msgpack.Unmarshal(p, v)
}
