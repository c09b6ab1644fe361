package types

import (
	"testing"
)

func TestSignalRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SignalRequest
		wantErr error
	}{
		{name: "addressed", req: SignalRequest{To: "peer-1", Signal: RawJSON([]byte(`{"sdp":"v=0"}`))}, wantErr: nil},
		{name: "missing target", req: SignalRequest{Signal: RawJSON([]byte(`"x"`))}, wantErr: ErrMissingTarget},
		{name: "nil signal is still relayed", req: SignalRequest{To: "peer-1"}, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendMessageRequest_Validate(t *testing.T) {
	empty := ""
	hi := "hi"

	if err := (&SendMessageRequest{}).Validate(); err != ErrMissingText {
		t.Errorf("Expected ErrMissingText, got %v", err)
	}
	if err := (&SendMessageRequest{Text: &empty}).Validate(); err != nil {
		t.Errorf("Empty text should be accepted, got %v", err)
	}
	if err := (&SendMessageRequest{Text: &hi}).Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestMediaStatusRequest_Validate(t *testing.T) {
	off := false

	if err := (&MediaStatusRequest{}).Validate(); err != ErrMissingVideo {
		t.Errorf("Expected ErrMissingVideo, got %v", err)
	}
	if err := (&MediaStatusRequest{Video: &off}).Validate(); err != nil {
		t.Errorf("Expected no error for video=false, got %v", err)
	}
}

func TestMatch_Validate(t *testing.T) {
	tests := []struct {
		name    string
		match   Match
		wantErr error
	}{
		{name: "valid", match: Match{ID: "m1", PeerA: "a", PeerB: "b"}, wantErr: nil},
		{name: "missing id", match: Match{PeerA: "a", PeerB: "b"}, wantErr: ErrInvalidMatch},
		{name: "missing peer", match: Match{ID: "m1", PeerA: "a"}, wantErr: ErrInvalidMatch},
		{name: "self pairing", match: Match{ID: "m1", PeerA: "a", PeerB: "a"}, wantErr: ErrInvalidMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.match.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCallTypePair(t *testing.T) {
	if got := CallTypePair("video", "audio"); got != "audio+video" {
		t.Errorf("Expected audio+video, got %s", got)
	}
	if got := CallTypePair("audio", "video"); got != "audio+video" {
		t.Errorf("Pair key should not depend on order, got %s", got)
	}
	if got := CallTypePair("", "video"); got != "unknown+video" {
		t.Errorf("Expected unknown+video, got %s", got)
	}
}

func TestIsInbound(t *testing.T) {
	for _, name := range []string{EventFindStranger, EventWebRTCSignal, EventSendMessage, EventMediaStatusChanged, EventDisconnectChat} {
		if !IsInbound(name) {
			t.Errorf("%s should be an inbound event", name)
		}
	}
	for _, name := range []string{EventStrangerFound, EventNewMessage, "disconnect", ""} {
		if IsInbound(name) {
			t.Errorf("%s should not be an inbound event", name)
		}
	}
}
