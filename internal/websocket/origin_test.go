package websocket

import (
	"net/http/httptest"
	"testing"
)

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"":                        "",
		"*":                       "*",
		"https://Example.com/":    "https://example.com",
		"HTTP://localhost:3000":   "http://localhost:3000",
		" https://chat.app/path ": "https://chat.app",
		"example.com/":            "example.com",
	}
	for in, want := range tests {
		if got := NormalizeOrigin(in); got != want {
			t.Errorf("NormalizeOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    bool
	}{
		{"wildcard", "*", "https://evil.example", true},
		{"no origin header", "https://chat.app", "", true},
		{"exact match", "https://chat.app", "https://chat.app", true},
		{"case and slash", "https://chat.app/", "HTTPS://CHAT.APP", true},
		{"other origin", "https://chat.app", "https://evil.example", false},
		{"other port", "http://localhost:3000", "http://localhost:4000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := OriginChecker(tt.allowed)(req); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
