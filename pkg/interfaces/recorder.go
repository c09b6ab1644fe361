package interfaces

import (
	"time"

	"strangers/pkg/types"
)

// MatchRecorder receives pairing lifecycle notifications for the match log.
// Implementations queue the write and return immediately.
type MatchRecorder interface {
	MatchStarted(match *types.Match)
	MatchEnded(matchID string, endedAt time.Time, reason string)
}

// NopRecorder discards all notifications. Used when the match log is disabled.
type NopRecorder struct{}

func (NopRecorder) MatchStarted(*types.Match)             {}
func (NopRecorder) MatchEnded(string, time.Time, string) {}
