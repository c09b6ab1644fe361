package router

import (
	"sync"
	"time"

	"strangers/pkg/types"
)

const rateWindow = time.Minute

// RateLimiter caps inbound events per connection within a one-minute window.
// A limit of zero disables limiting.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	clients map[string]*ClientLimit
	now     func() time.Time
}

// ClientLimit tracks the current window for a single connection
type ClientLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing perMinute events per connection
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limit:   perMinute,
		clients: make(map[string]*ClientLimit),
		now:     time.Now,
	}
}

// Check applies the limit to one inbound event. Ending a chat and searching
// for a stranger are exempt and never consume the window.
func (rl *RateLimiter) Check(connID, event string) error {
	switch event {
	case types.EventDisconnectChat, types.EventFindStranger:
		return nil
	}
	if !rl.Allow(connID) {
		return ErrRateLimitExceeded
	}
	return nil
}

// Allow reports whether the connection may send another event
func (rl *RateLimiter) Allow(connID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := rl.clients[connID]
	if !exists {
		rl.clients[connID] = &ClientLimit{count: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= rateWindow {
		limit.count = 1
		limit.windowStart = now
		return true
	}

	if limit.count >= rl.limit {
		return false
	}
	limit.count++
	return true
}

// Remove forgets a connection's window
func (rl *RateLimiter) Remove(connID string) {
	rl.mu.Lock()
	delete(rl.clients, connID)
	rl.mu.Unlock()
}

// Cleanup drops windows idle for more than five windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for connID, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*rateWindow {
			delete(rl.clients, connID)
		}
	}
}

// Len returns the number of tracked connections
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
