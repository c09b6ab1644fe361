package types

import (
	"time"
)

// Inbound event names, as emitted by browser clients
const (
	EventFindStranger       = "find-stranger"
	EventWebRTCSignal       = "webrtc-signal"
	EventSendMessage        = "send-message"
	EventMediaStatusChanged = "media-status-changed"
	EventDisconnectChat     = "disconnect-chat"
)

// Outbound event names
const (
	EventConnected            = "connected"
	EventStrangerFound        = "stranger-found"
	EventNewMessage           = "new-message"
	EventStrangerMediaStatus  = "stranger-media-status"
	EventStrangerDisconnected = "stranger-disconnected"
)

// Teardown reasons recorded in the match log
const (
	EndReasonEnded        = "ended"
	EndReasonDisconnected = "disconnected"
	EndReasonInterrupted  = "interrupted"
)

// Envelope is the frame carried over the transport in both directions.
// Data is omitted for events without a payload (stranger-disconnected).
type Envelope struct {
	Event string `json:"event" msgpack:"event"`
	Data  any    `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Payload is an undecoded event body. Codecs provide the implementation so
// handlers can bind it to a typed request without knowing the frame format.
type Payload interface {
	Decode(v any) error
	Empty() bool
}

// Event is one inbound event from a connection, as queued to the hub
type Event struct {
	ConnID     string
	Name       string
	Payload    Payload
	ReceivedAt time.Time
}

// FindStrangerRequest is the find-stranger payload
type FindStrangerRequest struct {
	Type string `json:"type" msgpack:"type"`
}

// SignalRequest is the inbound webrtc-signal payload
type SignalRequest struct {
	To     string `json:"to" msgpack:"to"`
	Signal Opaque `json:"signal" msgpack:"signal"`
}

// SendMessageRequest is the send-message payload
type SendMessageRequest struct {
	Text *string `json:"text" msgpack:"text"`
}

// MediaStatusRequest is the media-status-changed payload
type MediaStatusRequest struct {
	Video *bool `json:"video" msgpack:"video"`
}

// ConnectedNotice tells a client its transport-assigned id
type ConnectedNotice struct {
	ID string `json:"id" msgpack:"id"`
}

// StrangerFound carries the partner's id and desired call type
type StrangerFound struct {
	ID       string `json:"id" msgpack:"id"`
	CallType string `json:"callType" msgpack:"callType"`
}

// RelayedSignal is the outbound webrtc-signal payload
type RelayedSignal struct {
	From   string `json:"from" msgpack:"from"`
	Signal any    `json:"signal" msgpack:"signal"`
}

// NewMessage is the outbound new-message payload
type NewMessage struct {
	Text string `json:"text" msgpack:"text"`
}

// StrangerMediaStatus is the outbound stranger-media-status payload
type StrangerMediaStatus struct {
	Video bool `json:"video" msgpack:"video"`
}

// Match is one pairing as recorded in the match log. Only metadata is kept;
// chat text and signaling payloads never reach storage.
type Match struct {
	ID        string     `json:"id"`
	PeerA     string     `json:"peer_a"`
	PeerB     string     `json:"peer_b"`
	ModeA     string     `json:"mode_a"`
	ModeB     string     `json:"mode_b"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	EndReason string     `json:"end_reason,omitempty"`
}

// MatchStats aggregates the match log
type MatchStats struct {
	Total           int            `json:"total"`
	Active          int            `json:"active"`
	ByCallTypes     map[string]int `json:"by_call_types"`
	AverageDuration time.Duration  `json:"average_duration"`
}

// LiveStats is a point-in-time snapshot of the matching state
type LiveStats struct {
	Connections int `json:"connections"`
	Waiting     int `json:"waiting"`
	Pairs       int `json:"pairs"`
	// Violations counts failed invariant checks when verification is on
	Violations int64 `json:"invariant_violations,omitempty"`
}
