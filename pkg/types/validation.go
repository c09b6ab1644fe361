package types

// Validate checks the signal has an addressed target
func (r *SignalRequest) Validate() error {
	if r.To == "" {
		return ErrMissingTarget
	}
	return nil
}

// Validate checks the text field was present. An empty string is still a message.
func (r *SendMessageRequest) Validate() error {
	if r.Text == nil {
		return ErrMissingText
	}
	return nil
}

// Validate checks the video flag was present
func (r *MediaStatusRequest) Validate() error {
	if r.Video == nil {
		return ErrMissingVideo
	}
	return nil
}

// Validate checks the match record before it is written
func (m *Match) Validate() error {
	if m.ID == "" || m.PeerA == "" || m.PeerB == "" || m.PeerA == m.PeerB {
		return ErrInvalidMatch
	}
	return nil
}

// CallTypePair returns a stable key for a pair of call types regardless of order
func CallTypePair(a, b string) string {
	if a == "" {
		a = "unknown"
	}
	if b == "" {
		b = "unknown"
	}
	if b < a {
		a, b = b, a
	}
	return a + "+" + b
}

// IsInbound reports whether name is an event clients may send
func IsInbound(name string) bool {
	switch name {
	case EventFindStranger, EventWebRTCSignal, EventSendMessage, EventMediaStatusChanged, EventDisconnectChat:
		return true
	default:
		return false
	}
}
